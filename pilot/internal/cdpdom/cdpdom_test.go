package cdpdom

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/proseai/surface"
)

const testPage = `<!doctype html><html><body>
<textarea id="plain">hello</textarea>
<div id="rich" contenteditable="true">hi <b>there</b></div>
<div id="static">not editable</div>
</body></html>`

// openPage needs a local Chrome; the test is skipped without one.
func openPage(t *testing.T) *rod.Page {
	t.Helper()
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no chrome installed")
	}
	u, err := launcher.New().Bin(bin).Headless(true).Launch()
	if err != nil {
		t.Skipf("launch chrome: %v", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		t.Skipf("connect chrome: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	p, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetDocumentContent(testPage); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDocument_Roundtrip(t *testing.T) {
	p := openPage(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	doc := New(p)
	ad := surface.NewAdapter(doc, nil)

	if els, err := doc.Query(ctx, "#static"); err != nil || len(els) != 0 {
		t.Errorf("static div: %v %v", els, err)
	}

	plain, err := doc.Query(ctx, "#plain")
	if err != nil || len(plain) != 1 || plain[0].Kind() != surface.KindPlainValue {
		t.Fatalf("plain = %v, %v", plain, err)
	}
	if !ad.WriteText(ctx, plain[0], "line one\nline two") {
		t.Fatal("plain write failed")
	}
	if got, _ := ad.ReadText(ctx, plain[0]); got != "line one\nline two" {
		t.Errorf("plain read = %q", got)
	}

	rich, err := doc.Query(ctx, "#rich")
	if err != nil || len(rich) != 1 || rich[0].Kind() != surface.KindRichEditable {
		t.Fatalf("rich = %v, %v", rich, err)
	}
	if !ad.WriteText(ctx, rich[0], "Hello there, friend") {
		t.Fatal("rich write failed")
	}
	if got, _ := ad.ReadText(ctx, rich[0]); got != "Hello there, friend" {
		t.Errorf("rich read = %q", got)
	}

	again, _ := doc.Query(ctx, "#rich")
	if len(again) != 1 || !again[0].SameNode(rich[0]) || again[0].SameNode(plain[0]) {
		t.Error("SameNode does not follow node identity")
	}
}
