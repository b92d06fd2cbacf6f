package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PasswordCredentials holds the passwords for a protected PDF.
type PasswordCredentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

func (c *PasswordCredentials) empty() bool {
	return c == nil || (c.UserPassword == "" && c.OwnerPassword == "")
}

// PasswordHandler opens password-protected PDFs. Credentials come from
// flags or config; there is no interactive prompt.
type PasswordHandler struct {
	defaults *PasswordCredentials
}

// NewPasswordHandler creates a password handler.
func NewPasswordHandler() *PasswordHandler {
	return &PasswordHandler{}
}

// SetDefaultCredentials sets credentials tried when a call passes none.
func (h *PasswordHandler) SetDefaultCredentials(creds *PasswordCredentials) {
	h.defaults = creds
}

// IsEncrypted checks whether a PDF requires a password. pdfcpu exposes
// no direct probe, so the page count call's failure mode is inspected.
func (h *PasswordHandler) IsEncrypted(filename string) (bool, error) {
	if _, err := api.PageCountFile(filename); err != nil {
		if IsPasswordError(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
	}
	return false, nil
}

// DecryptPDF writes a decrypted copy to a temp file and returns its
// path. The caller removes the file via CleanupTempFile. An already
// open document is returned unchanged.
func (h *PasswordHandler) DecryptPDF(filename string, creds *PasswordCredentials) (string, error) {
	encrypted, err := h.IsEncrypted(filename)
	if err != nil {
		return "", err
	}
	if !encrypted {
		return filename, nil
	}

	if creds.empty() {
		creds = h.defaults
	}
	if creds.empty() {
		return "", errors.New("document is password protected and no credentials were provided")
	}

	tempName, err := h.createTempFile()
	if err != nil {
		return "", err
	}
	if err := api.DecryptFile(filename, tempName, h.decryptionConfig(creds)); err != nil {
		_ = os.Remove(tempName)
		return "", fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return tempName, nil
}

// ValidateCredentials checks that the credentials open the document.
func (h *PasswordHandler) ValidateCredentials(filename string, creds *PasswordCredentials) error {
	if creds.empty() {
		return errors.New("no credentials provided")
	}

	tempFile, err := os.CreateTemp("", "bargo-validate-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tempFile.Name()) }()
	_ = tempFile.Close()

	if err := api.DecryptFile(filename, tempFile.Name(), h.decryptionConfig(creds)); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	return nil
}

// CleanupTempFile removes a decrypted temp copy. Paths that do not look
// like one of ours are left alone.
func (h *PasswordHandler) CleanupTempFile(filename string) error {
	if filename == "" {
		return nil
	}
	if strings.Contains(filename, "bargo-decrypted-") && strings.HasSuffix(filename, ".pdf") {
		return os.Remove(filename)
	}
	return nil
}

func (h *PasswordHandler) decryptionConfig(creds *PasswordCredentials) *model.Configuration {
	config := model.NewDefaultConfiguration()
	if creds != nil {
		config.UserPW = creds.UserPassword
		config.OwnerPW = creds.OwnerPassword
	}
	return config
}

func (h *PasswordHandler) createTempFile() (string, error) {
	tempFile, err := os.CreateTemp("", "bargo-decrypted-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	_ = tempFile.Close()
	return tempFile.Name(), nil
}

// IsPasswordError reports whether an error indicates a password or
// encryption problem.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication", "unauthorized"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
