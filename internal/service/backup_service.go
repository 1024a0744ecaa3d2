package service

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"cvquest/internal/catalog"
	"cvquest/internal/logger"
	"cvquest/internal/models"
	"cvquest/internal/storage"
)

// ErrInvalidBackup is returned for bundles that fail to parse or verify
var ErrInvalidBackup = errors.New("invalid progress backup")

const (
	backupVersion = "1.0"
	backupIssuer  = "cvquest"
	backupKeyInfo = "cvquest progress export v1"
)

// BackupClaims is the payload of a progress bundle
type BackupClaims struct {
	Version  string                  `json:"version"`
	Snapshot models.ProgressSnapshot `json:"snapshot"`
	jwt.RegisteredClaims
}

// BackupService exports a student's progress on one origin as a signed
// bundle and restores it.
type BackupService struct {
	store   storage.Storage
	catalog *catalog.Catalog
	log     *logger.Logger
	key     []byte
	now     func() time.Time
}

// NewBackupService derives the bundle signing key from secret
func NewBackupService(store storage.Storage, cat *catalog.Catalog, secret string, log *logger.Logger) (*BackupService, error) {
	if secret == "" {
		return nil, errors.New("export secret is required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(backupKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive export key: %w", err)
	}
	return &BackupService{store: store, catalog: cat, log: log, key: key, now: time.Now}, nil
}

func (s *BackupService) progress(studentID string) *ProgressService {
	p := NewProgressService(s.store, s.catalog, s.log, WithProgressClock(s.now))
	p.Load(studentID)
	return p
}

// Export signs the stored progress of studentID as an HS256 token
func (s *BackupService) Export(studentID string) (string, error) {
	if studentID == "" {
		return "", errors.New("student id is required")
	}
	snapshot := s.progress(studentID).Export()

	now := s.now()
	claims := BackupClaims{
		Version:  backupVersion,
		Snapshot: snapshot,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   backupIssuer,
			Subject:  studentID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign backup: %w", err)
	}

	s.log.Info("Progress exported", "student_id", studentID, "games", len(snapshot.CompletedGames))
	return token, nil
}

// ExportToFile writes the bundle of studentID to outputPath
func (s *BackupService) ExportToFile(studentID, outputPath string) error {
	token, err := s.Export(studentID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Decode verifies a bundle and returns its claims
func (s *BackupService) Decode(token string) (*BackupClaims, error) {
	claims := &BackupClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(backupIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if claims.Subject != claims.Snapshot.StudentID {
		return nil, fmt.Errorf("%w: subject does not match snapshot", ErrInvalidBackup)
	}
	return claims, nil
}

// Import restores a bundle into the progress of studentID. A bundle of another
// student is refused with ErrStudentMismatch.
func (s *BackupService) Import(studentID, token string) (*models.ProgressSnapshot, error) {
	claims, err := s.Decode(token)
	if err != nil {
		return nil, err
	}

	p := s.progress(studentID)
	if err := p.Import(claims.Snapshot); err != nil {
		return nil, err
	}

	s.log.Info("Progress imported", "student_id", studentID, "exported_at", claims.Snapshot.ExportDate)
	return &claims.Snapshot, nil
}

// ImportFromReader restores a bundle read from r
func (s *BackupService) ImportFromReader(studentID string, r io.Reader) (*models.ProgressSnapshot, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	return s.Import(studentID, string(raw))
}

// ImportFile restores a bundle written by ExportToFile
func (s *BackupService) ImportFile(studentID, inputPath string) (*models.ProgressSnapshot, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()
	return s.ImportFromReader(studentID, f)
}
