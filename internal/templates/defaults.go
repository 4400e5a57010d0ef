package templates

import "github.com/mikey/mail-triage/internal/core"

// DefaultTemplates returns the built-in catalog. The first entry is the
// catalog default.
func DefaultTemplates() []core.ResponseTemplate {
	return []core.ResponseTemplate{
		{
			ID:    "pt-productive-ack",
			Label: core.LabelProductive,
			Body: "Olá! Entendo sua solicitação sobre {topic}. " +
				"Vou analisar e retornar em breve com uma solução. " +
				"Se precisar de mais informações, estarei aqui para ajudar.",
			Variables: []string{"topic"},
			Tone:      "professional",
			Language:  core.LanguagePortuguese,
			Active:    true,
		},
		{
			ID:    "pt-productive-question",
			Label: core.LabelProductive,
			Body: "Obrigado pelo contato! Sua dúvida sobre {topic} " +
				"foi registrada e está sendo analisada pela nossa equipe. " +
				"Retornaremos em até 24 horas.",
			Variables: []string{"topic"},
			Tone:      "friendly",
			Language:  core.LanguagePortuguese,
			Active:    true,
		},
		{
			ID:    "pt-productive-missing-info",
			Label: core.LabelProductive,
			Body: "Recebemos sua solicitação. Para agilizar o atendimento, " +
				"preciso de algumas informações adicionais: {missing_info}. " +
				"Assim que receber, poderei ajudá-lo imediatamente.",
			Variables: []string{"missing_info"},
			Tone:      "professional",
			Language:  core.LanguagePortuguese,
			Active:    true,
		},
		{
			ID:    "pt-unproductive-satisfied",
			Label: core.LabelUnproductive,
			Body: "Obrigado pelo contato! Ficamos felizes em saber que " +
				"está satisfeito com nossos serviços. " +
				"Se precisar de algo mais, estamos aqui!",
			Tone:     "friendly",
			Language: core.LanguagePortuguese,
			Active:   true,
		},
		{
			ID:    "pt-unproductive-feedback",
			Label: core.LabelUnproductive,
			Body: "Agradecemos sua mensagem! É sempre um prazer " +
				"receber feedback positivo de nossos clientes. " +
				"Continue nos acompanhando!",
			Tone:     "warm",
			Language: core.LanguagePortuguese,
			Active:   true,
		},
		{
			ID:    "pt-unproductive-received",
			Label: core.LabelUnproductive,
			Body: "Obrigado pelo contato! Sua mensagem foi recebida. " +
				"Se precisar de suporte técnico ou tiver dúvidas, " +
				"nossa equipe está disponível para ajudá-lo.",
			Tone:     "professional",
			Language: core.LanguagePortuguese,
			Active:   true,
		},
		{
			ID:    "en-productive-ack",
			Label: core.LabelProductive,
			Body: "Hello! I understand your request about {topic}. " +
				"I will look into it and get back to you shortly with a solution.",
			Variables: []string{"topic"},
			Tone:      "professional",
			Language:  core.LanguageEnglish,
			Active:    true,
		},
		{
			ID:    "en-productive-missing-info",
			Label: core.LabelProductive,
			Body: "We have received your request. To speed things up, " +
				"please send us the following: {missing_info}.",
			Variables: []string{"missing_info"},
			Tone:      "professional",
			Language:  core.LanguageEnglish,
			Active:    true,
		},
		{
			ID:    "en-unproductive-thanks",
			Label: core.LabelUnproductive,
			Body: "Thank you for your message! " +
				"If you need anything else, we are here to help.",
			Tone:     "friendly",
			Language: core.LanguageEnglish,
			Active:   true,
		},
	}
}
