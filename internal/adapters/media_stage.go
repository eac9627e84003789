package adapters

import (
	"context"
	"crypto"
	_ "crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	goupdate "github.com/doitdistributed/go-update"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
)

// MediaStagerAdapter copies bundle files onto or off removable media. The
// destination is only replaced once the copied bytes hash to checksum.
type MediaStagerAdapter struct {
	Progress       io.Writer
	BytesPerSecond int
}

func NewMediaStagerAdapter(progress io.Writer, bytesPerSecond int) MediaStagerAdapter {
	return MediaStagerAdapter{Progress: progress, BytesPerSecond: bytesPerSecond}
}

func (a MediaStagerAdapter) Copy(ctx context.Context, src string, dest string, checksum []byte) error {
	in, err := os.Open(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("cannot open %s for staging", src)).
			WithCause(err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("cannot create %s", filepath.Dir(dest))).
			WithCause(err)
	}
	placeholder := false
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		created, err := os.Create(dest)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg(fmt.Sprintf("cannot create %s", dest)).
				WithCause(err)
		}
		created.Close()
		placeholder = true
	}

	var reader io.Reader = in
	if a.BytesPerSecond > 0 {
		reader = newRateLimitedReader(ctx, reader, a.BytesPerSecond)
	}
	if a.Progress != nil {
		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetWriter(a.Progress),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		reader = io.TeeReader(reader, bar)
	}

	err = goupdate.Apply(reader, goupdate.Options{
		TargetPath: dest,
		TargetMode: 0644,
		Checksum:   checksum,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		if placeholder {
			_ = os.Remove(dest)
		}
		code := errbuilder.CodeResourceExhausted
		if strings.Contains(strings.ToLower(err.Error()), "checksum") {
			code = errbuilder.CodeDataLoss
		}
		return errbuilder.New().
			WithCode(code).
			WithMsg(fmt.Sprintf("staging %s to %s failed", filepath.Base(src), dest)).
			WithCause(err)
	}
	return nil
}

type rateLimitedReader struct {
	ctx     context.Context
	reader  io.Reader
	limiter *rate.Limiter
}

func newRateLimitedReader(ctx context.Context, reader io.Reader, bytesPerSecond int) *rateLimitedReader {
	return &rateLimitedReader{
		ctx:     ctx,
		reader:  reader,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
	}
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	if burst := r.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := r.reader.Read(p)
	if n > 0 {
		if waitErr := r.limiter.WaitN(r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

var _ ports.MediaStagerPort = MediaStagerAdapter{}
