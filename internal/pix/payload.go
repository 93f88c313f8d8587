package pix

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BR Code field identifiers, in emission order.
const (
	idPayloadFormat      = "00"
	idMerchantAccount    = "26"
	idMerchantAccountGUI = "00"
	idMerchantAccountKey = "01"
	idMerchantCategory   = "52"
	idCurrency           = "53"
	idAmount             = "54"
	idCountry            = "58"
	idMerchantName       = "59"
	idMerchantCity       = "60"
	idAdditionalData     = "62"
	idAdditionalTxID     = "05"
	idCRC                = "63"

	payloadFormat    = "01"
	pixGUI           = "BR.GOV.BCB.PIX"
	merchantCategory = "0000"
	currencyBRL      = "986"
	countryBR        = "BR"

	maxNameLength   = 25
	maxCityLength   = 15
	maxTxIDLength   = 25
	maxAmountLength = 13
	maxFieldLength  = 99

	// DefaultTransactionID is the BR Code placeholder for "no transaction id".
	DefaultTransactionID = "***"
)

var (
	ErrInvalidAmount = errors.New("pix: amount must be greater than zero")
	ErrAmountTooLong = errors.New("pix: amount exceeds 13 characters")
	ErrEmptyKey      = errors.New("pix: key is required")
	ErrKeyTooLong    = errors.New("pix: key does not fit the merchant account field")
	ErrMerchantName  = errors.New("pix: merchant name has no printable characters")
	ErrMerchantCity  = errors.New("pix: merchant city has no printable characters")
)

// Payload carries the inputs of a static BR Code with a fixed amount.
type Payload struct {
	Key           string
	Amount        decimal.Decimal
	MerchantName  string
	MerchantCity  string
	TransactionID string
}

// RoundAmount applies the single rounding rule used for every PIX amount:
// half away from zero, two decimal places.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// FormatAmount renders an amount the way field 54 expects it ("40.00").
func FormatAmount(amount decimal.Decimal) string {
	return RoundAmount(amount).StringFixed(2)
}

// BuildPayload assembles the BR Code for p and appends its checksum.
func BuildPayload(p Payload) (string, error) {
	key := strings.TrimSpace(p.Key)
	if key == "" {
		return "", ErrEmptyKey
	}

	amount := RoundAmount(p.Amount)
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	formattedAmount := amount.StringFixed(2)
	if utf8.RuneCountInString(formattedAmount) > maxAmountLength {
		return "", ErrAmountTooLong
	}

	name, city, err := merchantFields(p.MerchantName, p.MerchantCity)
	if err != nil {
		return "", err
	}

	account := field(idMerchantAccountGUI, pixGUI) + field(idMerchantAccountKey, key)
	if utf8.RuneCountInString(account) > maxFieldLength {
		return "", ErrKeyTooLong
	}

	var b strings.Builder
	b.WriteString(field(idPayloadFormat, payloadFormat))
	b.WriteString(field(idMerchantAccount, account))
	b.WriteString(field(idMerchantCategory, merchantCategory))
	b.WriteString(field(idCurrency, currencyBRL))
	b.WriteString(field(idAmount, formattedAmount))
	b.WriteString(field(idCountry, countryBR))
	b.WriteString(field(idMerchantName, name))
	b.WriteString(field(idMerchantCity, city))
	b.WriteString(field(idAdditionalData, field(idAdditionalTxID, SanitizeTransactionID(p.TransactionID))))

	// The checksum covers its own id and the fixed length "04".
	b.WriteString(idCRC + "04")
	payload := b.String()

	return payload + fmt.Sprintf("%04X", Checksum16(payload)), nil
}

// ValidateMerchant reports whether the merchant name and city survive
// sanitising. Fields 59 and 60 are mandatory and may not be empty.
func ValidateMerchant(name, city string) error {
	_, _, err := merchantFields(name, city)
	return err
}

func merchantFields(name, city string) (string, string, error) {
	n := sanitizeText(name, maxNameLength)
	if n == "" {
		return "", "", ErrMerchantName
	}
	c := sanitizeText(city, maxCityLength)
	if c == "" {
		return "", "", ErrMerchantCity
	}
	return n, c, nil
}

// VerifyChecksum reports whether the trailing four hex digits of a BR Code
// match the checksum of everything before them.
func VerifyChecksum(payload string) bool {
	if len(payload) < 4 {
		return false
	}
	body, suffix := payload[:len(payload)-4], payload[len(payload)-4:]
	return fmt.Sprintf("%04X", Checksum16(body)) == suffix
}

// SanitizeTransactionID keeps the alphanumeric characters allowed in field 62-05.
func SanitizeTransactionID(txid string) string {
	var b strings.Builder
	for _, r := range txid {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
		if b.Len() == maxTxIDLength {
			break
		}
	}
	if b.Len() == 0 {
		return DefaultTransactionID
	}
	return b.String()
}

// field renders one ID + length + value triple. Length counts characters.
func field(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, utf8.RuneCountInString(value), value)
}

// sanitizeText folds accents, drops anything outside printable ASCII and
// truncates to the field limit, so character and byte lengths agree.
func sanitizeText(value string, limit int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	count := 0
	for _, r := range strings.TrimSpace(folded) {
		if r < 0x20 || r > 0x7E {
			continue
		}
		if count == limit {
			break
		}
		b.WriteRune(r)
		count++
	}
	return strings.TrimSpace(b.String())
}
