// Package identity manages the locally persisted pieces of a host's
// identity: the machine id and the registration marker files.
//
// Registration state is never held in memory. Every query re-reads the
// marker files so that separate invocations (cron, manual runs) agree.
package identity

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/mixer/clock"
	"github.com/pkg/errors"
)

// State is the tri-state registration status derived from marker files.
type State int

const (
	StateUnknown State = iota
	StateRegistered
	StateUnregistered
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// timestampFormat matches the marker payload written by earlier clients.
const timestampFormat = time.ANSIC

// Paths locates the files making up a host identity.
type Paths struct {
	MachineID    string
	Registered   string
	Unregistered string
	LastUpload   string
}

type Option func(*Store)

// WithClock overrides the clock used to stamp marker files.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// Store reads and writes the identity files.
type Store struct {
	logger log.Logger
	clock  clock.Clock
	paths  Paths
}

func New(logger log.Logger, paths Paths, opts ...Option) *Store {
	s := &Store{
		logger: log.With(logger, "component", "identity"),
		clock:  clock.DefaultClock{},
		paths:  paths,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// MachineID returns the persisted machine id. If the file is absent, or
// regenerate is set, a new random id is generated and written first.
func (s *Store) MachineID(regenerate bool) (string, error) {
	if !regenerate {
		raw, err := os.ReadFile(s.paths.MachineID)
		switch {
		case err == nil:
			if id := strings.TrimSpace(string(raw)); id != "" {
				return id, nil
			}
		case !os.IsNotExist(err):
			return "", errors.Wrap(err, "reading machine id")
		}
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "generating machine id")
	}

	if err := writeFile(s.paths.MachineID, id.String()); err != nil {
		return "", errors.Wrap(err, "writing machine id")
	}

	level.Debug(s.logger).Log("msg", "generated new machine id", "machine_id", id.String())
	return id.String(), nil
}

func (s *Store) DeleteMachineID() error {
	return removeIfExists(s.paths.MachineID)
}

// WriteRegistered records a successful registration. It clears any
// unregistered marker, since the two are mutually exclusive.
func (s *Store) WriteRegistered() error {
	if err := s.DeleteUnregistered(); err != nil {
		return err
	}
	return errors.Wrap(
		writeFile(s.paths.Registered, s.clock.Now().Format(timestampFormat)),
		"writing registered marker",
	)
}

func (s *Store) DeleteRegistered() error {
	return removeIfExists(s.paths.Registered)
}

// WriteUnregistered records a deregistration with the server supplied
// timestamp. An empty timestamp is replaced with the current time.
func (s *Store) WriteUnregistered(unregisteredAt string) error {
	if err := s.DeleteRegistered(); err != nil {
		return err
	}

	if unregisteredAt == "" {
		unregisteredAt = s.clock.Now().Format(timestampFormat)
	}

	level.Info(s.logger).Log("msg", "writing unregistered marker", "unregistered_at", unregisteredAt)
	return errors.Wrap(
		writeFile(s.paths.Unregistered, unregisteredAt),
		"writing unregistered marker",
	)
}

func (s *Store) DeleteUnregistered() error {
	return removeIfExists(s.paths.Unregistered)
}

func (s *Store) WriteLastUpload() error {
	return errors.Wrap(
		writeFile(s.paths.LastUpload, s.clock.Now().Format(timestampFormat)),
		"writing last upload marker",
	)
}

// LastUpload returns the timestamp of the last successful upload, or the
// empty string if there has never been one.
func (s *Store) LastUpload() (string, error) {
	return readMarker(s.paths.LastUpload)
}

// State derives the registration state from the marker files. For the
// unregistered state, the returned string is the persisted timestamp.
func (s *Store) State() (State, string, error) {
	unregisteredAt, err := readMarker(s.paths.Unregistered)
	if err != nil {
		return StateUnknown, "", err
	}
	if exists(s.paths.Unregistered) {
		return StateUnregistered, unregisteredAt, nil
	}

	registeredAt, err := readMarker(s.paths.Registered)
	if err != nil {
		return StateUnknown, "", err
	}
	if exists(s.paths.Registered) {
		return StateRegistered, registeredAt, nil
	}

	return StateUnknown, "", nil
}

func readMarker(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "reading marker %s", path)
	}
	return strings.TrimSpace(string(raw)), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFile(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0600)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}
