package connection

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// UploadArchive streams the archive at path to the upload URL as the
// multipart field "file". Statuses >= 400 are returned as classified
// errors; a 412 records the deregistration before DeregisteredError is
// returned. Any other status is returned as is, 201 meaning accepted.
//
// The upload has no overall deadline. It is aborted when the archive stops
// being consumed for the configured timeout, and the transport bounds the
// wait for the response once the body is sent.
func (c *Client) UploadArchive(ctx context.Context, path string) (int, error) {
	archive, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "opening archive")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := newStallReader(archive, c.config.Timeout, cancel)
	defer progress.stop()

	reader, writer := io.Pipe()
	mw := multipart.NewWriter(writer)
	contentType := mw.FormDataContentType()

	go func() {
		defer archive.Close()

		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			writer.CloseWithError(err)
			return
		}
		_, err = io.Copy(part, progress)
		progress.stop()
		if err != nil {
			writer.CloseWithError(err)
			return
		}
		writer.CloseWithError(mw.Close())
	}()

	level.Debug(c.logger).Log("msg", "uploading", "archive", path, "url", c.config.UploadURL)
	start := time.Now()

	resp, body, err := c.send(ctx, http.MethodPost, c.config.UploadURL, reader, contentType)
	// the transport closes the body on every path, but make sure the writer
	// goroutine is released if the request never started
	reader.Close()
	if err != nil {
		return 0, err
	}

	if err := c.handleFailure(resp, body); err != nil {
		return resp.StatusCode, err
	}

	level.Debug(c.logger).Log(
		"msg", "upload status",
		"status_code", resp.StatusCode,
		"status", http.StatusText(resp.StatusCode),
		"body", string(body),
		"duration", time.Since(start).String(),
	)

	if resp.StatusCode == http.StatusCreated {
		level.Info(c.logger).Log("msg", "upload completed successfully")
	}

	return resp.StatusCode, nil
}

// stallReader calls cancel when no bytes have been read for timeout.
type stallReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newStallReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *stallReader {
	return &stallReader{
		r:       r,
		timeout: timeout,
		timer:   time.AfterFunc(timeout, cancel),
	}
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.timer.Reset(s.timeout)
	}
	return n, err
}

func (s *stallReader) stop() {
	s.timer.Stop()
}
