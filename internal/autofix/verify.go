package autofix

import (
	"context"
	"errors"
	"fmt"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/domain"
	"github.com/testforge/e2ekit/internal/llm"
)

var unescaper = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)

// Verifier asks a model to review a test file and applies its fixes.
type Verifier struct {
	llm    llm.Completer
	logger *zap.Logger
	now    func() time.Time
}

func NewVerifier(c llm.Completer, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{llm: c, logger: logger, now: time.Now}
}

// Verify reviews the file at path. The original is copied to
// path+BackupSuffix first; the copy survives when the review found an
// error-severity issue or the run failed, and is removed otherwise. Fixes
// are written unless opts.NoFix is set. Go files must still parse after
// the fix.
func (v *Verifier) Verify(ctx context.Context, path string, opts VerifyOptions) (*Verification, error) {
	start := v.now()
	original, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound("test file", path)
		}
		return nil, domain.ErrIO("reading", path, err)
	}

	backup := path + BackupSuffix
	if err := os.WriteFile(backup, original, 0o644); err != nil {
		return nil, domain.ErrIO("writing", backup, err)
	}

	res := &Verification{ID: uuid.New(), File: path, Backup: backup}
	code := string(original)

	v.logger.Info("verifying test file",
		zap.String("verification_id", res.ID.String()),
		zap.String("file", path),
		zap.Int("lines", strings.Count(code, "\n")+1))

	var review Review
	if _, err := llm.CompleteJSON(ctx, v.llm, reviewSystemPrompt, reviewPrompt(path, code), &review); err != nil {
		return res, fmt.Errorf("reviewing %s: %w", path, err)
	}
	review = sanitize(review, code)
	res.Review = review

	if filepath.Ext(path) == ".go" && review.FixedCode != code {
		formatted, err := format.Source([]byte(review.FixedCode))
		if err != nil {
			return res, domain.ErrVerificationFailed("fixed code is not valid Go", err).
				WithMetadata("file", path)
		}
		review.FixedCode = string(formatted)
		res.Review.FixedCode = review.FixedCode
	}

	if !opts.NoFix && review.HasIssues && review.FixedCode != code {
		if err := os.WriteFile(path, []byte(review.FixedCode), 0o644); err != nil {
			return res, domain.ErrIO("writing", path, err)
		}
		res.Applied = true
	}

	if !review.Critical() {
		if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			v.logger.Warn("removing backup", zap.String("backup", backup), zap.Error(err))
		} else {
			res.Backup = ""
		}
	}

	res.Duration = v.now().Sub(start)
	v.logger.Info("verification complete",
		zap.String("verification_id", res.ID.String()),
		zap.Int("issues", len(review.Issues)),
		zap.Int("errors", review.Count(domain.SeverityError)),
		zap.Bool("applied", res.Applied),
		zap.Bool("backup_kept", res.BackupKept()))
	return res, nil
}

// sanitize fills gaps in the model's reply: missing code means the
// original, literal \n escapes in single-line code are decoded, and a
// reply listing issues always has HasIssues set.
func sanitize(r Review, original string) Review {
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	if len(r.Issues) > 0 {
		r.HasIssues = true
	}
	if r.Explanation == "" {
		r.Explanation = "No explanation provided"
	}
	if strings.TrimSpace(r.FixedCode) == "" {
		r.FixedCode = original
	} else if !strings.Contains(r.FixedCode, "\n") && strings.Contains(r.FixedCode, `\n`) {
		r.FixedCode = unescaper.Replace(r.FixedCode)
	}
	for i := range r.Issues {
		switch r.Issues[i].Severity {
		case domain.SeverityError, domain.SeverityWarning, domain.SeverityInfo:
		default:
			r.Issues[i].Severity = domain.SeverityWarning
		}
	}
	return r
}
