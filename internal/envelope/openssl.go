package envelope

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"fatturex/pkg/models"
)

// opensslVariants are the argument lists tried in order. DER comes
// before PEM because portal downloads are almost always raw DER; the
// smime forms cover older openssl builds without the cms subcommand.
var opensslVariants = [][]string{
	{"cms", "-verify", "-noverify", "-inform", "DER"},
	{"cms", "-decrypt", "-verify", "-inform", "DER", "-noverify"},
	{"smime", "-verify", "-noverify", "-inform", "DER"},
	{"smime", "-decrypt", "-inform", "DER", "-noverify"},
	{"cms", "-verify", "-inform", "PEM", "-noverify"},
	{"cms", "-decrypt", "-inform", "PEM", "-noverify"},
}

// opensslStrategy shells out to the openssl binary. Every invocation
// runs under a hard timeout so a hung subprocess cannot stall the batch.
type opensslStrategy struct {
	path    string
	timeout time.Duration
}

func newOpenSSLStrategy(path string, timeout time.Duration) opensslStrategy {
	return opensslStrategy{path: path, timeout: timeout}
}

func (opensslStrategy) Name() string { return StrategyOpenSSL }

func (s opensslStrategy) TryDecode(ctx context.Context, doc *models.RawDocument) ([]byte, []string) {
	var attempts []string

	for i, variant := range opensslVariants {
		out, err := s.run(ctx, variant, doc.Content)
		if err != nil {
			attempts = append(attempts,
				fmt.Sprintf("%s variant %d (%s): %v", StrategyOpenSSL, i+1, strings.Join(variant, " "), err))
			continue
		}
		return out, attempts
	}

	return nil, attempts
}

// run executes one openssl invocation feeding the envelope on stdin.
// Output containing the XML marker is accepted from stdout first, then
// from stderr, since some openssl builds mix verification output streams.
func (s opensslStrategy) run(ctx context.Context, args []string, content []byte) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.path, args...)
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("timeout after %s", s.timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), firstLine(stderr.Bytes()))
		}
		return nil, err
	}

	if bytes.Contains(stdout.Bytes(), xmlProlog) {
		return stdout.Bytes(), nil
	}
	if bytes.Contains(stderr.Bytes(), xmlProlog) {
		return stderr.Bytes(), nil
	}
	return nil, fmt.Errorf("no XML in command output")
}

func firstLine(b []byte) string {
	line, _, _ := bytes.Cut(bytes.TrimSpace(b), []byte("\n"))
	const maxLen = 200
	if len(line) > maxLen {
		line = line[:maxLen]
	}
	return string(line)
}
