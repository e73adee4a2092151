package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegexp = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email обязателен")
	}
	if len(email) > 254 || !emailRegexp.MatchString(email) {
		return fmt.Errorf("неверный формат email")
	}
	return nil
}

// ValidatePhone проверяет формат номера телефона.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("номер телефона обязателен")
	}
	if !phoneRegexp.MatchString(phone) {
		return fmt.Errorf("неверный формат номера телефона")
	}
	return nil
}

// ValidateName проверяет имя пользователя.
func ValidateName(name string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(name))
	if length < 2 {
		return fmt.Errorf("имя должно содержать минимум 2 символа")
	}
	if length > 100 {
		return fmt.Errorf("имя не должно превышать 100 символов")
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("пароль должен содержать минимум 8 символов")
	}
	if len(password) > 72 {
		// Ограничение bcrypt
		return fmt.Errorf("пароль не должен превышать 72 символа")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("пароль должен содержать буквы и цифры")
	}

	return nil
}

// ValidateProductTitle проверяет заголовок объявления.
func ValidateProductTitle(title string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(title))
	if length < 3 {
		return fmt.Errorf("заголовок должен содержать минимум 3 символа")
	}
	if length > 200 {
		return fmt.Errorf("заголовок не должен превышать 200 символов")
	}
	return nil
}
