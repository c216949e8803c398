package secret

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// MaxPromptAttempts bounds how many times Password asks for a matching pair.
const MaxPromptAttempts = 3

const (
	promptSet     = "Set password: "
	promptConfirm = "Type password again (for verification): "
	promptRetry   = "Passwords did not match. Try again.\n"
)

// Prompter asks the user for a secret.
type Prompter interface {
	PromptSecret(ctx context.Context, prompt string) (Secret, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, prompt string) (Secret, error)

// PromptSecret implements Prompter.
func (f PrompterFunc) PromptSecret(ctx context.Context, prompt string) (Secret, error) {
	return f(ctx, prompt)
}

// Password returns the secret stored for service and user. When there is
// none it prompts for a new one, stores it and returns it.
func Password(ctx context.Context, kr Keyring, service, user string, p Prompter) (Secret, error) {
	s, ok, err := kr.GetSecret(ctx, service, user)
	if err != nil {
		return "", err
	}
	if ok {
		return s, nil
	}
	return SetPassword(ctx, kr, service, user, p)
}

// SetPassword prompts for a password twice and stores it once both entries
// match. After MaxPromptAttempts mismatches it returns ErrPasswordMismatch
// and stores nothing.
func SetPassword(ctx context.Context, kr Keyring, service, user string, p Prompter) (Secret, error) {
	prefix := ""
	for range MaxPromptAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		first, err := p.PromptSecret(ctx, prefix+promptSet)
		if err != nil {
			return "", err
		}
		if first == "" {
			return "", ErrEmptyPassword
		}
		second, err := p.PromptSecret(ctx, promptConfirm)
		if err != nil {
			return "", err
		}
		if first == second {
			if err := kr.SetSecret(ctx, service, user, first); err != nil {
				return "", err
			}
			return first, nil
		}
		prefix = promptRetry
	}
	return "", fmt.Errorf("%w after %d attempts", ErrPasswordMismatch, MaxPromptAttempts)
}

// TerminalPrompter reads secrets from a terminal without echo. When In is
// not a terminal it reads one line, so input can be piped.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stderr and reads from stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// PromptSecret implements Prompter.
func (p *TerminalPrompter) PromptSecret(ctx context.Context, prompt string) (Secret, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.WriteString(p.Out, prompt); err != nil {
		return "", err
	}

	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		_, _ = io.WriteString(p.Out, "\n")
		if err != nil {
			return "", fmt.Errorf("secret: read password: %w", err)
		}
		return Secret(b), nil
	}

	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("secret: read password: %w", err)
	}
	return Secret(strings.TrimRight(line, "\r\n")), nil
}

var _ Prompter = (*TerminalPrompter)(nil)
