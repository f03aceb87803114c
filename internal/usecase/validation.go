package usecase

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xavierca1/leadsync/internal/entity"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var phonePattern = regexp.MustCompile(`^[0-9+()\-. ]{7,20}$`)

func ValidateCaptureLeadInput(input CaptureLeadInput) []ValidationError {
	var errors []ValidationError

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if utf8.RuneCountInString(name) > 200 {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}

	if strings.TrimSpace(input.Email) == "" {
		errors = append(errors, ValidationError{"email", "is required"})
	} else if !isValidEmail(input.Email) {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}

	if phone := strings.TrimSpace(input.Phone); phone != "" && !phonePattern.MatchString(phone) {
		errors = append(errors, ValidationError{"phone", "must be a valid phone number"})
	}

	message := strings.TrimSpace(input.Message)
	if message == "" {
		errors = append(errors, ValidationError{"message", "is required"})
	} else if utf8.RuneCountInString(message) > 5000 {
		errors = append(errors, ValidationError{"message", "must not exceed 5000 characters"})
	}

	if utf8.RuneCountInString(input.ProductName) > 200 {
		errors = append(errors, ValidationError{"product_name", "must not exceed 200 characters"})
	}

	if input.Source != "" && !entity.LeadSource(input.Source).Valid() {
		errors = append(errors, ValidationError{"source", "must be web-form or chatbot"})
	}

	return errors
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return false
	}
	// ParseAddress accepts "Name <a@b>"; only a bare address is a valid lead email.
	return addr.Address == strings.TrimSpace(email)
}
