package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinListingTitleLength       = 3
	MaxListingTitleLength       = 200
	MinListingDescriptionLength = 10
	MaxListingDescriptionLength = 5000
	MinDisputeReasonLength      = 10
	MaxDisputeReasonLength      = 2000
	MaxAdminNotesLength         = 5000
	MaxFarmNameLength           = 200
	MaxRegionLength             = 100
	MinMessageLength            = 1
	MaxMessageLength            = 5000
	MaxRatingCommentLength      = 2000
	MaxEvidenceURLLength        = 500
	MaxEvidenceURLsCount        = 20
	MinPrice                    = 0.0
	MaxPrice                    = 1000000000.0 // 1 миллиард
	MinRatingScore              = 1
	MaxRatingScore              = 5
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	localRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !localRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidatePhone проверяет номер телефона.
func ValidatePhone(phone *string) error {
	if phone == nil || *phone == "" {
		return nil
	}

	p := strings.TrimSpace(*phone)
	phoneRegex := regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{6,19}$`)
	if !phoneRegex.MatchString(p) {
		return fmt.Errorf("некорректный формат номера телефона")
	}

	return nil
}

// ValidateListingTitle проверяет заголовок объявления.
func ValidateListingTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок объявления обязателен")
	}

	title = strings.TrimSpace(title)

	return ValidateLength("заголовок объявления", title, MinListingTitleLength, MaxListingTitleLength)
}

// ValidateListingDescription проверяет описание объявления.
func ValidateListingDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание объявления обязательно")
	}

	description = strings.TrimSpace(description)

	return ValidateLength("описание объявления", description, MinListingDescriptionLength, MaxListingDescriptionLength)
}

// ValidatePrice проверяет цену.
func ValidatePrice(price float64) error {
	if price < MinPrice {
		return fmt.Errorf("цена не может быть отрицательной")
	}
	if price > MaxPrice {
		return fmt.Errorf("цена не может превышать %.0f", MaxPrice)
	}
	return nil
}

// ValidateAmount проверяет сумму сделки.
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("сумма должна быть положительной")
	}
	if amount > MaxPrice {
		return fmt.Errorf("сумма не может превышать %.0f", MaxPrice)
	}
	return nil
}

// ValidateDisputeReason проверяет причину спора.
func ValidateDisputeReason(reason string) error {
	if reason == "" {
		return fmt.Errorf("причина спора обязательна")
	}

	reason = strings.TrimSpace(reason)

	return ValidateLength("причина спора", reason, MinDisputeReasonLength, MaxDisputeReasonLength)
}

// ValidateAdminNotes проверяет комментарий администратора.
func ValidateAdminNotes(notes *string) error {
	if notes != nil && *notes != "" {
		return ValidateLength("комментарий администратора", strings.TrimSpace(*notes), 0, MaxAdminNotesLength)
	}
	return nil
}

// ValidateEvidenceURLs проверяет ссылки на доказательства.
func ValidateEvidenceURLs(urls []string) error {
	if len(urls) > MaxEvidenceURLsCount {
		return fmt.Errorf("количество ссылок на доказательства не может превышать %d", MaxEvidenceURLsCount)
	}

	for _, link := range urls {
		link = strings.TrimSpace(link)
		if link == "" {
			return fmt.Errorf("ссылка на доказательство не может быть пустой")
		}

		if err := ValidateLength("ссылка на доказательство", link, 0, MaxEvidenceURLLength); err != nil {
			return err
		}

		parsedURL, err := url.Parse(link)
		if err != nil {
			return fmt.Errorf("некорректный формат URL")
		}

		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("ссылка должна начинаться с http:// или https://")
		}

		if parsedURL.Host == "" {
			return fmt.Errorf("ссылка должна содержать доменное имя")
		}
	}

	return nil
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}

	content = strings.TrimSpace(content)

	return ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength)
}

// ValidateRatingScore проверяет оценку.
func ValidateRatingScore(score int) error {
	if score < MinRatingScore || score > MaxRatingScore {
		return fmt.Errorf("оценка должна быть от %d до %d", MinRatingScore, MaxRatingScore)
	}
	return nil
}

// ValidateRatingComment проверяет комментарий к оценке.
func ValidateRatingComment(comment *string) error {
	if comment != nil && *comment != "" {
		return ValidateLength("комментарий", strings.TrimSpace(*comment), 0, MaxRatingCommentLength)
	}
	return nil
}

// ValidateRegion проверяет регион.
func ValidateRegion(region *string) error {
	if region != nil && *region != "" {
		return ValidateLength("регион", strings.TrimSpace(*region), 0, MaxRegionLength)
	}
	return nil
}

// ValidateFarmName проверяет название хозяйства.
func ValidateFarmName(farmName *string) error {
	if farmName != nil && *farmName != "" {
		return ValidateLength("название хозяйства", strings.TrimSpace(*farmName), 0, MaxFarmNameLength)
	}
	return nil
}
