package envelope

// fallbackText is the fixed answer published when a turn fails before a
// usable completion is available.
var fallbackText = map[string]string{
	"en-US": "Sorry, I ran into a problem answering that. Please try again.",
	"ta-IN": "மன்னிக்கவும், பதிலளிப்பதில் சிக்கல் ஏற்பட்டது. மீண்டும் முயற்சிக்கவும்.",
	"hi-IN": "क्षमा करें, उत्तर देने में समस्या हुई। कृपया फिर से प्रयास करें।",
	"es-ES": "Lo siento, hubo un problema al responder. Inténtalo de nuevo.",
	"fr-FR": "Désolé, un problème est survenu. Veuillez réessayer.",
	"de-DE": "Entschuldigung, bei der Antwort ist ein Problem aufgetreten. Bitte versuche es erneut.",
	"it-IT": "Spiacente, si è verificato un problema. Riprova.",
	"pt-PT": "Desculpe, ocorreu um problema ao responder. Tente novamente.",
	"ru-RU": "Извините, произошла ошибка при ответе. Пожалуйста, попробуйте ещё раз.",
	"ja-JP": "申し訳ありません、回答中に問題が発生しました。もう一度お試しください。",
	"ko-KR": "죄송합니다. 답변 중 문제가 발생했습니다. 다시 시도해 주세요.",
	"zh-CN": "抱歉，回答时出现问题。请重试。",
	"ar-SA": "عذراً، حدثت مشكلة أثناء الإجابة. يرجى المحاولة مرة أخرى.",
	"bn-IN": "দুঃখিত, উত্তর দিতে সমস্যা হয়েছে। আবার চেষ্টা করুন।",
	"te-IN": "క్షమించండి, సమాధానం ఇవ్వడంలో సమస్య వచ్చింది. మళ్లీ ప్రయత్నించండి.",
	"mr-IN": "क्षमस्व, उत्तर देताना समस्या आली. कृपया पुन्हा प्रयत्न करा.",
	"ml-IN": "ക്ഷമിക്കണം, മറുപടി നൽകുന്നതിൽ പ്രശ്നമുണ്ടായി. വീണ്ടും ശ്രമിക്കുക.",
	"kn-IN": "ಕ್ಷಮಿಸಿ, ಉತ್ತರಿಸುವಲ್ಲಿ ಸಮಸ್ಯೆ ಉಂಟಾಯಿತು. ಮತ್ತೆ ಪ್ರಯತ್ನಿಸಿ.",
	"gu-IN": "માફ કરશો, જવાબ આપવામાં સમસ્યા આવી. કૃપા કરીને ફરી પ્રયાસ કરો.",
}

// FallbackText returns the localized fixed fallback answer for a locale,
// defaulting to en-US for unknown codes.
func FallbackText(locale string) string {
	if text, ok := fallbackText[locale]; ok {
		return text
	}
	return fallbackText[DefaultLocale]
}

// FallbackEnvelope returns the encoded fallback response for a locale.
func FallbackEnvelope(locale string) string {
	locale = NormalizeLocale(locale)
	return Encode(locale, FallbackText(locale))
}
