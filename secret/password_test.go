package secret

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

// scripted answers prompts in order and records them.
type scripted struct {
	answers []Secret
	prompts []string
}

func (s *scripted) PromptSecret(_ context.Context, prompt string) (Secret, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return "", errors.New("unexpected prompt")
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func TestPassword_ReturnsStored(t *testing.T) {
	kr := NewMemoryKeyring()
	ctx := context.Background()
	_ = kr.SetSecret(ctx, "db", "app", "stored")
	p := &scripted{}

	got, err := Password(ctx, kr, "db", "app", p)
	if err != nil || got != "stored" {
		t.Fatalf("Password() = %v, %v", got.Reveal(), err)
	}
	if len(p.prompts) != 0 {
		t.Errorf("prompted although a secret was stored: %v", p.prompts)
	}
}

func TestPassword_PromptsAndStores(t *testing.T) {
	kr := NewMemoryKeyring()
	ctx := context.Background()
	p := &scripted{answers: []Secret{"pw", "pw"}}

	got, err := Password(ctx, kr, "db", "app", p)
	if err != nil || got != "pw" {
		t.Fatalf("Password() = %v, %v", got.Reveal(), err)
	}
	stored, ok, _ := kr.GetSecret(ctx, "db", "app")
	if !ok || stored != "pw" {
		t.Errorf("keyring holds %v, %v", stored.Reveal(), ok)
	}
}

func TestPassword_RetriesOnMismatch(t *testing.T) {
	kr := NewMemoryKeyring()
	p := &scripted{answers: []Secret{"a", "b", "c", "c"}}

	got, err := Password(context.Background(), kr, "db", "app", p)
	if err != nil || got != "c" {
		t.Fatalf("Password() = %v, %v", got.Reveal(), err)
	}
	if len(p.prompts) != 4 || !strings.HasPrefix(p.prompts[2], promptRetry) {
		t.Errorf("prompts = %q", p.prompts)
	}
}

func TestPassword_GivesUp(t *testing.T) {
	kr := NewMemoryKeyring()
	var answers []Secret
	for i := range MaxPromptAttempts {
		answers = append(answers, Secret("x"), Secret(strings.Repeat("y", i+1)))
	}
	p := &scripted{answers: answers}

	_, err := Password(context.Background(), kr, "db", "app", p)
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("error = %v, want ErrPasswordMismatch", err)
	}
	if _, ok, _ := kr.GetSecret(context.Background(), "db", "app"); ok {
		t.Error("mismatched password was stored")
	}
}

func TestPassword_EmptyRejected(t *testing.T) {
	p := &scripted{answers: []Secret{""}}
	if _, err := Password(context.Background(), NewMemoryKeyring(), "db", "app", p); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("error = %v, want ErrEmptyPassword", err)
	}
}

func TestPassword_PrompterFunc(t *testing.T) {
	calls := 0
	p := PrompterFunc(func(context.Context, string) (Secret, error) {
		calls++
		return "same", nil
	})
	if _, err := Password(context.Background(), NewMemoryKeyring(), "db", "app", p); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("prompted %d times, want 2", calls)
	}
}

func TestTerminalPrompter_ReadsPipedLines(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	if _, err := w.WriteString("first\nsecond\r\n"); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()

	var out bytes.Buffer
	p := &TerminalPrompter{In: r, Out: &out}
	ctx := context.Background()

	a, err := p.PromptSecret(ctx, "one: ")
	if err != nil || a != "first" {
		t.Fatalf("first prompt = %q, %v", a.Reveal(), err)
	}
	b, err := p.PromptSecret(ctx, "two: ")
	if err != nil || b != "second" {
		t.Fatalf("second prompt = %q, %v", b.Reveal(), err)
	}
	if out.String() != "one: two: " {
		t.Errorf("prompts written = %q", out.String())
	}
	if _, err := p.PromptSecret(ctx, "three: "); err == nil {
		t.Error("expected error at end of input")
	}
}
