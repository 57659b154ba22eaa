package payment

import (
	"golang.org/x/text/language"
)

type Locale string

const (
	LocaleEN Locale = "en"
	LocaleAR Locale = "ar"
)

var (
	supportedTags = []language.Tag{language.English, language.Arabic}
	matcher       = language.NewMatcher(supportedTags)
)

// ParseLocale maps an Accept-Language value or a bare tag to a supported
// locale. Anything unrecognised falls back to English.
func ParseLocale(s string) Locale {
	if s == "" {
		return LocaleEN
	}
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return LocaleEN
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return LocaleEN
	}
	if supportedTags[idx] == language.Arabic {
		return LocaleAR
	}
	return LocaleEN
}

type messageKey int

const (
	msgNameRequired messageKey = iota
	msgCardNumberInvalid
	msgExpiryInvalid
	msgCardExpired
	msgCVVInvalid
	msgAmountInvalid
	msgPaymentFallback
)

var catalog = map[Locale]map[messageKey]string{
	LocaleEN: {
		msgNameRequired:      "Cardholder name is required",
		msgCardNumberInvalid: "Invalid card number",
		msgExpiryInvalid:     "Expiry date must be in MM/YY format",
		msgCardExpired:       "Card has expired",
		msgCVVInvalid:        "CVV must be 3 or 4 digits",
		msgAmountInvalid:     "Amount must be greater than zero",
		msgPaymentFallback:   "Could not process payment. Please check your card details.",
	},
	LocaleAR: {
		msgNameRequired:      "اسم حامل البطاقة مطلوب",
		msgCardNumberInvalid: "رقم البطاقة غير صالح",
		msgExpiryInvalid:     "يجب أن يكون تاريخ الانتهاء بصيغة MM/YY",
		msgCardExpired:       "انتهت صلاحية البطاقة",
		msgCVVInvalid:        "يجب أن يتكون رمز التحقق من 3 أو 4 أرقام",
		msgAmountInvalid:     "يجب أن يكون المبلغ أكبر من صفر",
		msgPaymentFallback:   "تعذر معالجة الدفع. يرجى التحقق من بيانات البطاقة.",
	},
}

func message(locale Locale, key messageKey) string {
	if m, ok := catalog[locale]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return catalog[LocaleEN][key]
}

// FallbackMessage is shown when a failed payment carries no usable error text.
func FallbackMessage(locale Locale) string {
	return message(locale, msgPaymentFallback)
}
