package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/proseai/horosafe"
	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/rewriteapi"
)

var (
	rewriteTone     string
	rewriteProvider string
	rewriteJSON     bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [text...]",
	Short: "Rewrite text in a tone and print the result",
	Long: `Rewrite the arguments, or stdin when there are none, with the same
validation as POST /api/rewrite. Without --tone the last used tone applies.`,
	RunE: runRewrite,
}

func init() {
	f := rewriteCmd.Flags()
	f.StringVarP(&rewriteTone, "tone", "t", "", "one of "+strings.Join(rewrite.ToneIDs(), ", "))
	f.StringVarP(&rewriteProvider, "provider", "p", "", "gemini, openai or claude (default: first configured)")
	f.BoolVar(&rewriteJSON, "json", false, "print the API response JSON")
}

func runRewrite(cmd *cobra.Command, args []string) error {
	ctx := kit.WithTransport(cmd.Context(), "cli")
	text := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := horosafe.LimitedReadAll(cmd.InOrStdin(), 64*1024)
		if err != nil {
			return err
		}
		text = string(b)
	}

	tone := rewriteTone
	if tone == "" {
		tone = rewrite.DefaultTone
		if db, store, err := openSettings(); err == nil {
			if st, err := store.Get(ctx); err == nil {
				tone = st.LastUsedTone
			}
			db.Close()
		}
	}

	db, err := openMetrics()
	if err != nil {
		return err
	}
	defer db.Close()
	svc, rec := newService(db)
	defer rec.Close()

	ctx = kit.WithRequestID(ctx, idgen.RequestID())
	resp := rewriteapi.Process(ctx, svc, rewriteapi.Request{Text: text, Tone: tone, Provider: rewriteProvider}, time.Now)
	return printRewrite(cmd.OutOrStdout(), resp)
}

func printRewrite(w io.Writer, resp *rewriteapi.Response) error {
	if rewriteJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if !resp.Success {
			return errors.New(resp.Error)
		}
		return nil
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	_, err := fmt.Fprintln(w, resp.RewrittenText)
	return err
}
