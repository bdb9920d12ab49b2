package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"eduattend/internal/api"
	"eduattend/internal/artifact"
	"eduattend/internal/datectx"
	"eduattend/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// now is the clock for date follow-ups.
var now = time.Now

// runAsk sends one question and streams the reply to stdout.
func runAsk(cmd *cobra.Command, args []string) error {
	question := joinArgs(args)
	if question == "" {
		return errors.New("question is empty")
	}

	ctx, cancel := signalContext(timeout)
	defer cancel()

	client := api.NewClient(appCfg)
	factory, closeWS := transportFactory(ctx, client, appCfg.Server.Transport)
	defer closeWS()

	sess := session.New(factory, session.WithClock(now))
	sess.Start(sessionKey)
	defer sess.Close()

	logger.Debug("Asking agent",
		zap.String("session", sess.Key()),
		zap.String("server", client.BaseURL()),
		zap.String("transport", appCfg.Server.Transport))

	st, err := sess.Send(question)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	st.Drain(sess, func(ev session.Event) {
		if ev.Kind == session.EventToken {
			fmt.Fprint(out, ev.Token)
		}
	})
	fmt.Fprintln(out)

	reply, ok := sess.LastAssistant()
	if !ok {
		return errors.New("no reply received")
	}
	if reply.Error {
		return errors.New(reply.Text())
	}

	printFollowUps(out, sess.Messages())
	return nil
}

// printFollowUps lists the files the reply mentions and, when the reply asks
// for a date, the ready-made follow-up questions.
func printFollowUps(w io.Writer, msgs []session.Message) {
	files := artifact.NewDetector(appCfg.Artifacts.Extensions).Detect(msgs)
	if len(files) > 0 {
		fmt.Fprintln(w, "\nFiles:")
		for _, f := range files {
			fmt.Fprintf(w, "  📄 %s  (eduattend download %s)\n", f, f)
		}
	}

	classifier, loc := datectx.FromConfig(appCfg.Heuristics)
	dc := classifier.Classify(msgs)
	if !dc.Show {
		return
	}
	composer := datectx.NewComposer(loc)
	fmt.Fprintf(w, "\n%s\n", loc.Labels.Header)
	for _, p := range datectx.QuickPicks(loc, dc.IsRange, now()) {
		fmt.Fprintf(w, "  %s (%s): %s\n", p.Label, p.Detail, composer.Compose(msgs, p))
	}
}
