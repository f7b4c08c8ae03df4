package cdpdom

// Each snippet runs with this bound to the element.

const jsKind = `() => {
	const tag = this.tagName;
	if (tag === 'TEXTAREA' || tag === 'INPUT') return 'plain';
	if (this.isContentEditable) return 'rich';
	return '';
}`

const jsConnected = `() => this.isConnected`

const jsEditable = `() => {
	if (this.tagName === 'TEXTAREA' || this.tagName === 'INPUT') {
		return !this.disabled && !this.readOnly;
	}
	return this.isContentEditable;
}`

const jsValue = `() => this.value`

// The prototype setter is what framework-managed inputs listen to.
const jsSetValue = `(v) => {
	const proto = this.tagName === 'TEXTAREA'
		? HTMLTextAreaElement.prototype
		: HTMLInputElement.prototype;
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) {
		desc.set.call(this, v);
	} else {
		this.value = v;
	}
}`

const jsRenderedText = `() => this.innerText`

const jsSetTextContent = `(t) => { this.textContent = t; }`

const jsFocus = `() => { this.focus(); }`

const jsSelectAll = `() => {
	if (this.tagName === 'TEXTAREA' || this.tagName === 'INPUT') {
		this.select();
		return;
	}
	const range = document.createRange();
	range.selectNodeContents(this);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
}`

const jsInsertText = `(t) => document.execCommand('insertText', false, t)`

const jsDispatch = `(type, inputType, data) => {
	let ev;
	if (type === 'change') {
		ev = new Event('change', { bubbles: true });
	} else {
		ev = new InputEvent(type, {
			bubbles: true,
			cancelable: type === 'beforeinput',
			inputType: inputType,
			data: data,
		});
	}
	this.dispatchEvent(ev);
}`

const jsCaretToEnd = `() => {
	if (this.tagName === 'TEXTAREA' || this.tagName === 'INPUT') {
		const n = this.value.length;
		this.setSelectionRange(n, n);
		return;
	}
	const range = document.createRange();
	range.selectNodeContents(this);
	range.collapse(false);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
}`
