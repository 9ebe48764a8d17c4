package triage

import (
	"strings"

	"github.com/MegaGrindStone/telehealth-web/internal/i18n"
	"github.com/MegaGrindStone/telehealth-web/internal/models"
)

const englishPrompt = `You are Dr. AI, a helpful, empathetic, and professional medical triage assistant for a TeleHealth app.
Your goal is to gather symptoms from the user, suggest potential causes (using cautious language like "might be", "could suggest"), and RECOMMEND THE APPROPRIATE SPECIALIST type.

You MUST try to recommend exactly one of the following specialists if relevant:
%SPECIALTIES%

IMPORTANT RULES:
1. DISCLAIMER: Always start or end major advice with a brief reminder that you are an AI and this is not a medical diagnosis.
2. TRIAGE: If symptoms sound life-threatening (e.g., severe chest pain, trouble breathing, stroke signs), immediately tell the user to call emergency services.
3. FORMAT: Keep responses concise and easy to read. Use bullet points for lists.
4. EMPATHY: Be kind and reassuring.
5. LANGUAGE: Respond in English.`

const hausaPrompt = `Kai ne Dr. AI, mataimakin lafiya mai taimako da kwarewa na manhajar TeleHealth.
Manufarka ita ce sauraron alamun ciwo daga mai amfani, bayar da shawarwari kan abin da zai iya zama sababi (amfani da harshen taka-tsantsan kamar "zai iya zama", "yana iya nuna"), da kuma BADA SHAWARAR KWARARREN da ya dace.

DOLE ne ka yi ƙoƙarin bada shawarar ɗaya kawai daga cikin kwararrun masu zuwa idan ya dace (rubuta sunan Turanci kamar yadda yake):
%SPECIALTIES%

MUHIMMAN DOKOKI:
1. DISCLAIMER: Koyaushe fara ko kawo karshen babban shawara tare da gajeren tunatarwa cewa kai AI ne kuma wannan ba binciken likita ba ne.
2. TRIAGE: Idan alamun suna barazana ga rayuwa (misali, matsanancin ciwon kirji, wahalar numfashi), gaya wa mai amfani nan take ya kira sabis na gaggawa.
3. FORMAT: Tabbatar martani ya zama takaitacce kuma mai sauƙin karantawa. Yi amfani da jerin abubuwa.
4. Harshe: Yi amfani da harshen Hausa mai sauƙi da girmamawa.`

var hausaSpecialtyNames = map[models.Specialty]string{
	models.SpecialtyGeneralPractitioner: "Likitan Gaba ɗaya",
	models.SpecialtyCardiologist:        "Likitan Zuciya",
	models.SpecialtyDermatologist:       "Likitan Fata",
	models.SpecialtyPediatrician:        "Likitan Yara",
	models.SpecialtyPsychiatrist:        "Likitan Kwakwalwa",
	models.SpecialtyOrthopedic:          "Likitan Kashi",
}

// SystemPrompt returns the instructions sent to the model for lang. The specialist list is built from
// the catalog so that replies name labels the detector recognises. Unknown languages get English.
//
// The model is asked, not forced, to follow these rules; nothing checks the reply against them.
func SystemPrompt(lang i18n.Language) string {
	var sb strings.Builder
	for i, s := range models.Specialties {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(string(s))
		if lang == i18n.Hausa {
			sb.WriteString(" (" + hausaSpecialtyNames[s] + ")")
		}
	}

	prompt := englishPrompt
	if lang == i18n.Hausa {
		prompt = hausaPrompt
	}
	return strings.Replace(prompt, "%SPECIALTIES%", sb.String(), 1)
}
