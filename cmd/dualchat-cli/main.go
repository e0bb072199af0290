// Command dualchat-cli runs a bilingual conversation in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"dualchat/internal/bootstrap"
	"dualchat/internal/usecase"
)

const help = `Type a question in English or Bengali and press enter.
  /listen        start voice input
  /done          stop voice input and keep the recognized text as the draft
  /send          submit the current draft
  /lang TAG      select the voice input language (en-US, bn-BD)
  /speak N       read message N aloud
  /stop          stop speaking
  /dismiss       clear the notification
  /quit          exit`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dualchat:", err)
		os.Exit(1)
	}
}

func run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer rl.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	term := newTerminal(rl.Stdout())
	services, err := bootstrap.Build(ctx, term)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
		defer done()
		_ = services.Close(shutdownCtx)
	}()
	if err := services.Start(); err != nil {
		return err
	}

	fmt.Fprintln(rl.Stdout(), help)
	orchestrator := services.Orchestrator
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if orchestrator.Snapshot().Loading {
				continue
			}
			return nil
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		quit, err := dispatch(ctx, rl.Stdout(), orchestrator, strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintln(rl.Stdout(), "!", err)
		}
		if quit {
			return nil
		}
	}
}

// dispatch runs one input line and reports whether the session should end.
func dispatch(ctx context.Context, out io.Writer, o *usecase.Orchestrator, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		o.SetDraft(line)
		_, err := o.SubmitQuestion(ctx)
		return false, err
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/listen":
		return false, o.StartCapture(ctx)
	case "/done":
		o.StopCapture()
		return false, nil
	case "/send":
		_, err := o.SubmitQuestion(ctx)
		return false, err
	case "/lang":
		return false, o.SetLanguage(arg)
	case "/speak":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return false, fmt.Errorf("usage: /speak N")
		}
		messages := o.Snapshot().Messages
		if n > len(messages) {
			return false, fmt.Errorf("no message %d", n)
		}
		return false, o.Speak(ctx, messages[n-1].ID)
	case "/stop":
		o.StopSpeaking()
		return false, nil
	case "/dismiss":
		o.DismissNotification()
		return false, nil
	case "/help":
		fmt.Fprintln(out, help)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", command)
	}
}
