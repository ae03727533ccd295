package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mohammad-safakhou/newsgpt/config"
	srv "github.com/mohammad-safakhou/newsgpt/internal/server"
	"github.com/mohammad-safakhou/newsgpt/recipients"
	"github.com/mohammad-safakhou/newsgpt/session"
	"github.com/mohammad-safakhou/newsgpt/utils"
	"github.com/spf13/cobra"
)

const replHelp = `Commands:
  /export             write the last articles to a Markdown file
  /export-response    write the last answer to a Markdown file
  /email <addresses>  mail the last answer (comma, semicolon or newline separated)
  /articles           list the last fetched articles
  /reset              clear history and stored results
  /quit               leave`

func chatCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			deps := srv.BuildDeps(cfg)
			sess, err := deps.Sessions.EnsureSession("", cfg.General.SessionTTL)
			if err != nil {
				return err
			}
			r := &repl{deps: deps, sess: sess, in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
			return r.run(cmd.Context())
		},
	}
}

type repl struct {
	deps srv.Deps
	sess session.Session
	in   *bufio.Reader
	out  io.Writer
	st   styles
}

func (r *repl) run(ctx context.Context) error {
	r.st = newStyles(r.out)
	fmt.Fprintln(r.out, r.st.banner.Render("NewsGPT - ask for any topic. Type /help for commands."))
	for {
		fmt.Fprint(r.out, r.st.prompt.Render("> "))
		line, err := r.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			if quit := r.handle(ctx, line); quit {
				return nil
			}
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			fmt.Fprintln(r.out)
			return nil
		}
	}
}

// handle runs one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, r.st.dim.Render(replHelp))
	case "/reset":
		if err := r.sess.Reset(); err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintln(r.out, r.st.ok.Render("Session cleared."))
	case "/articles":
		articles := r.sess.Articles()
		if len(articles) == 0 {
			fmt.Fprintln(r.out, r.st.dim.Render("No articles yet."))
		}
		for i, a := range articles {
			fmt.Fprintf(r.out, "%d. %s (%s)\n   %s\n", i+1, utils.PlainText(a.Title), a.SourceName, r.st.dim.Render(a.URL))
		}
	case "/export":
		path, err := r.deps.Exporter.Articles(r.sess.Articles())
		r.reportExport(path, err)
	case "/export-response":
		path, err := r.deps.Exporter.Response(r.sess.LastResponse())
		r.reportExport(path, err)
	case "/email":
		list := recipients.Extract(nil, rest)
		st := r.deps.Mailer.SendLastResponse(ctx, r.sess, "", list)
		if st.OK() {
			fmt.Fprintln(r.out, r.st.ok.Render(st.String()))
		} else {
			fmt.Fprintln(r.out, r.st.err.Render(st.String()))
		}
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintln(r.out, r.st.err.Render(fmt.Sprintf("Unknown command %s. Type /help.", cmd)))
			return false
		}
		reply, err := r.deps.Assistant.Turn(ctx, r.sess, line)
		if err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintln(r.out, reply)
	}
	return false
}

func (r *repl) fail(err error) {
	fmt.Fprintln(r.out, r.st.err.Render("❌ "+err.Error()))
}

func (r *repl) reportExport(path string, err error) {
	switch {
	case err != nil:
		r.fail(err)
	case path == "":
		fmt.Fprintln(r.out, r.st.dim.Render("Nothing to export yet."))
	default:
		fmt.Fprintln(r.out, r.st.ok.Render("Saved "+path))
	}
}
