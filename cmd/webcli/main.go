// Command webcli attaches a local terminal to a web CLI session host: it
// signs the credential, opens the session, pumps raw stdin to the shell, and
// paints connection overlays while the session is not live.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ably-labs/webcli/internal/credential"
	"github.com/ably-labs/webcli/internal/overlay"
	"github.com/ably-labs/webcli/sdk"
)

// Ctrl+] detaches, telnet style; Ctrl+C must reach the remote shell.
const detachByte = 0x1d

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("webcli", flag.ContinueOnError)
	url := fs.String("url", "ws://localhost:8080/term", "session host websocket URL")
	signURL := fs.String("sign-url", "", "credential sign endpoint (POST /sign); empty signs locally")
	apiKey := fs.String("api-key", os.Getenv("ABLY_API_KEY"), "API key to embed in the signed config")
	accessToken := fs.String("access-token", "", "access token to embed in the signed config")
	maxAttempts := fs.Int("max-attempts", 0, "reconnect attempt budget (0 = default)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cred, err := obtainCredential(*signURL, credential.SignRequest{
		APIKey:      *apiKey,
		AccessToken: *accessToken,
	})
	if err != nil {
		return err
	}

	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(stdinFd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(stdinFd, oldState)

	ended := make(chan string, 1)
	terminal, err := sdk.New(sdk.Options{
		WebsocketURL:         *url,
		SignedConfig:         cred.SignedConfig,
		Signature:            cred.Signature,
		MaxReconnectAttempts: *maxAttempts,
		OnConnectionStatusChange: func(s sdk.ConnectionStatus) {
			paintStatus(s)
		},
		OnSessionEnd: func(reason string) {
			select {
			case ended <- reason:
			default:
			}
		},
		OnData: func(p []byte) {
			os.Stdout.Write(p)
		},
	})
	if err != nil {
		return err
	}
	terminal.Start()
	defer terminal.Stop()

	go pumpStdin(terminal)

	reason := <-ended
	term.Restore(stdinFd, oldState)
	fmt.Printf("\nSession ended: %s\n", reason)
	return nil
}

// obtainCredential signs via the remote endpoint when one is given, locally
// otherwise.
func obtainCredential(signURL string, req credential.SignRequest) (credential.SignedCredential, error) {
	if signURL == "" {
		signer := credential.NewSigner(os.Getenv("WEBCLI_SIGNING_SECRET"))
		return signer.Sign(req)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return credential.SignedCredential{}, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(signURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return credential.SignedCredential{}, fmt.Errorf("sign request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return credential.SignedCredential{}, fmt.Errorf("sign endpoint: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	var cred credential.SignedCredential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return credential.SignedCredential{}, fmt.Errorf("sign response: %w", err)
	}
	return cred, nil
}

// pumpStdin forwards keystrokes until the detach byte shows up.
func pumpStdin(terminal *sdk.Terminal) {
	buf := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], detachByte); i >= 0 {
				if i > 0 {
					_ = terminal.Write(buf[:i])
				}
				terminal.Close("detached")
				return
			}
			if err := terminal.Write(buf[:n]); err != nil {
				// Between attempts there is nothing to write to; drop the
				// keystrokes like the original does.
				continue
			}
		}
		if err != nil {
			terminal.Close("stdin closed")
			return
		}
	}
}

// paintStatus draws the connection overlay for non-live states. Output uses
// \r\n because the local terminal is in raw mode.
func paintStatus(s sdk.ConnectionStatus) {
	var block string
	switch s.Status {
	case sdk.StatusConnecting:
		block = overlay.Render(overlay.VariantConnecting, "CONNECTING",
			[]string{"Connecting to terminal..."}, nil)
	case sdk.StatusReconnecting:
		lines := []string{"Connection lost. Reconnecting..."}
		if s.Attempt > 0 {
			lines = append(lines, fmt.Sprintf("Attempt %d (Ctrl+] to cancel)", s.Attempt))
		}
		block = overlay.Render(overlay.VariantReconnecting, "RECONNECTING", lines, nil)
	case sdk.StatusError:
		variant := overlay.VariantError
		if strings.Contains(s.Reason, "attempts") {
			variant = overlay.VariantMaxAttempts
		}
		block = overlay.Render(variant, "ERROR", []string{s.Reason}, nil)
	default:
		return
	}
	os.Stdout.WriteString("\r\n" + strings.ReplaceAll(block, "\n", "\r\n") + "\r\n")
}
