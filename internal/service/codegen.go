package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// DefaultCodeAttempts is how many random candidates GenerateUnique tries
// before falling back to a timestamp-derived code.
const DefaultCodeAttempts = 10

// CodeChecker reports whether a code is already held by a booth.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator produces booth codes: three uppercase letters followed by
// three digits.
type CodeGenerator struct {
	codes       CodeChecker
	random      io.Reader
	now         func() time.Time
	maxAttempts int
}

// NewCodeGenerator constructs a CodeGenerator. maxAttempts <= 0 uses
// DefaultCodeAttempts.
func NewCodeGenerator(codes CodeChecker, maxAttempts int) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeAttempts
	}
	return &CodeGenerator{codes: codes, now: time.Now, maxAttempts: maxAttempts}
}

// Generate returns one random candidate code.
func (g *CodeGenerator) Generate() (string, error) {
	letters, err := randomString(g.random, upperLetters, 3)
	if err != nil {
		return "", err
	}
	nums, err := randomString(g.random, digits, 3)
	if err != nil {
		return "", err
	}
	return letters + nums, nil
}

// GenerateUnique returns a code no booth currently holds. The check is only
// an optimisation: the caller's write is still guarded by the storage
// uniqueness constraint and may fail with ErrConflict.
func (g *CodeGenerator) GenerateUnique(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code, err := g.Generate()
		if err != nil {
			return "", err
		}
		taken, err := g.codes.CodeExists(ctx, code)
		if err != nil {
			return "", storageError("check code", err)
		}
		if !taken {
			return code, nil
		}
	}

	code := g.fallbackCode()
	slog.Warn("booth code generation degraded to timestamp fallback",
		"attempts", g.maxAttempts,
		"code", code,
	)
	return code, nil
}

// fallbackCode derives a six-character code from the clock so generation
// always terminates.
func (g *CodeGenerator) fallbackCode() string {
	s := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	if len(s) > 6 {
		s = s[len(s)-6:]
	}
	return s
}
