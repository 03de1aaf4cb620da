package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"goa.design/clue/log"

	"github.com/jimacampos/deskagent/runtime/agent/driver"
	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/transcript"
)

// repl reads user lines and drives one turn per line. The first interrupt
// cancels the in-flight turn; a second interrupt while the turn winds down
// exits the process.
func repl(ctx context.Context, drv *driver.Driver, reader *transcript.Reader, threadID string) error {
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	fmt.Println(`deskagent ready. Type a message, or "exit" to quit.`)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		// An interrupt delivered while waiting at the prompt means quit.
		select {
		case sig := <-sigc:
			log.Printf(ctx, "exiting (%v)", sig)
			return nil
		default:
		}

		runTurn(ctx, sigc, drv, reader, threadID, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	log.Printf(ctx, "exited")
	return nil
}

// runTurn drives one conversation turn and prints the outcome. Remote
// failures end the turn, not the session.
func runTurn(ctx context.Context, sigc <-chan os.Signal, drv *driver.Driver, reader *transcript.Reader, threadID, line string) {
	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigc:
			log.Printf(ctx, "interrupt: cancelling turn (interrupt again to exit)")
			cancel()
			select {
			case sig := <-sigc:
				log.Printf(ctx, "exiting (%v)", sig)
				os.Exit(1)
			case <-done:
			}
		case <-done:
		}
	}()

	res, err := drv.RunTurn(turnCtx, threadID, line)
	close(done)
	cancel()
	if err != nil {
		log.Errorf(ctx, err, "turn aborted")
		return
	}
	if res.State == runs.StateFailed {
		fmt.Printf("turn failed: %s\n", res.FailureMessage)
		return
	}

	reply, ok, err := reader.LatestAssistantMessage(ctx, threadID)
	if err != nil {
		log.Errorf(ctx, err, "read reply")
		return
	}
	if !ok {
		fmt.Println("(no reply)")
		return
	}
	fmt.Println(reply)
}
