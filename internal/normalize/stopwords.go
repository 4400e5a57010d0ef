package normalize

import "strings"

var stopwords = wordSet(
	// pt
	"a", "o", "e", "é", "de", "do", "da", "em", "um", "para", "com",
	"não", "na", "mais", "as", "dos", "como", "mas", "foi", "ele", "das",
	"tem", "à", "seu", "sua", "ou", "ser", "quando", "muito", "há", "nos",
	"já", "está", "eu", "também", "só", "pelo", "pela", "até", "isso",
	"ela", "entre", "era", "depois", "sem", "mesmo", "aos", "ter", "seus",
	"suas", "minha", "têm", "naquela", "neles", "essas", "esses", "pelos",
	"elas", "estava", "fosse", "nela", "estas", "estes", "pelas",
	"este", "dele", "dela", "nós", "lhe", "deles", "delas", "mesma",
	"meu", "teu", "tua", "teus", "tuas", "nosso", "nossa", "nossos", "nossas",
	"que", "uma", "por", "se", "no", "os",
	// en
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
	"her", "was", "one", "our", "out", "has", "have", "had", "his", "how",
	"its", "who", "this", "that", "with", "from", "they", "will", "would",
	"there", "their", "what", "about", "which", "when", "your", "been",
	"were", "them", "then", "than", "into", "some", "these", "those",
)

// IsStopword reports whether word is in the fixed stopword set, ignoring case.
func IsStopword(word string) bool {
	_, ok := stopwords[strings.ToLower(word)]
	return ok
}
