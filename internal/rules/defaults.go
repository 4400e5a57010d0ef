package rules

import "github.com/mikey/mail-triage/internal/core"

// DefaultRules returns the built-in catalog. Keywords are matched as
// substrings of the lower-cased clean text.
func DefaultRules() []Rule {
	return []Rule{
		// productive
		{
			Name:  "technical_support",
			Label: core.LabelProductive,
			Keywords: []string{
				"problema", "erro", "bug", "não funciona", "falha",
				"ticket", "suporte", "ajuda", "urgente", "crítico",
				"login", "senha", "acesso", "sistema", "aplicação",
				"not working", "broken", "support", "help", "password",
			},
			Weight: 0.8,
		},
		{
			Name:  "specific_question",
			Label: core.LabelProductive,
			Keywords: []string{
				"como fazer", "onde encontrar", "quando", "quanto",
				"dúvida", "pergunta", "informação", "detalhes",
				"preço", "prazo", "status", "andamento",
				"how do i", "how can", "where can", "question",
				"information", "details", "deadline", "price",
			},
			Weight: 0.7,
		},
		{
			Name:  "action_request",
			Label: core.LabelProductive,
			Keywords: []string{
				"solicito", "peço", "gostaria", "preciso", "quero",
				"favor", "por favor", "urgente", "importante",
				"ação", "resposta", "retorno", "contato",
				"please", "request", "could you", "would you",
				"need", "asap", "follow up",
			},
			Weight: 0.6,
		},
		{
			Name:     "ticket_reference",
			Label:    core.LabelProductive,
			Patterns: []string{`\b(?:ticket|chamado|protocolo|case)\s*:?\s*\d{3,}\b`},
			Weight:   0.5,
		},

		// unproductive
		{
			Name:  "simple_thanks",
			Label: core.LabelUnproductive,
			Keywords: []string{
				"obrigado", "obrigada", "valeu", "agradeço", "agradece",
				"muito obrigado", "muito obrigada", "parabéns", "sucesso",
				"thank you", "thanks", "congratulations", "appreciate",
			},
			Weight: 0.9,
		},
		{
			Name:  "social_greeting",
			Label: core.LabelUnproductive,
			Keywords: []string{
				"bom dia", "boa tarde", "boa noite", "olá", "oi",
				"tudo bem", "como vai", "feliz aniversário", "feliz natal",
				"good morning", "good afternoon", "hello", "how are you",
				"happy birthday", "merry christmas",
			},
			Weight: 0.8,
		},
		{
			Name:  "marketing",
			Label: core.LabelUnproductive,
			Keywords: []string{
				"promoção", "oferta", "desconto", "cupom", "venda",
				"marketing", "newsletter", "inscreva-se", "clique aqui",
				"unsubscribe", "discount", "coupon", "click here", "special offer",
			},
			Weight: 0.7,
		},
	}
}
