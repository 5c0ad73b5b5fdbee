package locale

import "fmt"

// Key names one localized string.
type Key int

const (
	AskName Key = iota
	WelcomeBack
	Greeting
	NameFirst
	ServerError
	Thinking
	PlaceholderName
	PlaceholderMessage
)

var texts = map[Language]map[Key]string{
	Italian: {
		AskName:            "Ciao! Sono il tuo assistente. Come ti chiami?",
		WelcomeBack:        "Bentornato, %s!",
		Greeting:           "Piacere di conoscerti, %s! Come posso aiutarti oggi?",
		NameFirst:          "Prima dimmi come ti chiami, per favore.",
		ServerError:        "Errore di connessione al server.",
		Thinking:           "Sherpa sta pensando...",
		PlaceholderName:    "Scrivi il tuo nome...",
		PlaceholderMessage: "Scrivi un messaggio...",
	},
	English: {
		AskName:            "Hi! I am your assistant. What is your name?",
		WelcomeBack:        "Welcome back, %s!",
		Greeting:           "Nice to meet you, %s! How can I help you today?",
		NameFirst:          "Please tell me your name first.",
		ServerError:        "Error connecting to server.",
		Thinking:           "Sherpa is thinking...",
		PlaceholderName:    "Type your name...",
		PlaceholderMessage: "Type a message...",
	},
	Spanish: {
		AskName:            "¡Hola! Soy tu asistente. ¿Cómo te llamas?",
		WelcomeBack:        "¡Bienvenido de nuevo, %s!",
		Greeting:           "¡Encantado de conocerte, %s! ¿En qué puedo ayudarte hoy?",
		NameFirst:          "Primero dime tu nombre, por favor.",
		ServerError:        "Error al conectar con el servidor.",
		Thinking:           "Sherpa está pensando...",
		PlaceholderName:    "Escribe tu nombre...",
		PlaceholderMessage: "Escribe un mensaje...",
	},
}

// Text returns the string for key in lang, formatted with args. Unknown
// languages fall back to Default.
func Text(lang Language, key Key, args ...any) string {
	table, ok := texts[lang]
	if !ok {
		table = texts[Default]
	}
	format := table[key]
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

var quickPrompts = map[Language][]string{
	Italian: {
		"Come gestisco la sindrome del tramonto?",
		"Quali sono i primi segnali dell'Alzheimer?",
		"Come posso comunicare meglio con il mio caro?",
		"Dove posso trovare supporto per chi assiste?",
	},
	English: {
		"How do I handle sundowning?",
		"What are the early signs of Alzheimer's?",
		"How can I communicate better with my loved one?",
		"Where can I find caregiver support?",
	},
	Spanish: {
		"¿Cómo manejo el síndrome del atardecer?",
		"¿Cuáles son las primeras señales del Alzheimer?",
		"¿Cómo puedo comunicarme mejor con mi ser querido?",
		"¿Dónde puedo encontrar apoyo para cuidadores?",
	},
}

// QuickPrompts returns a copy of the canned prompt catalog for lang.
func QuickPrompts(lang Language) []string {
	prompts, ok := quickPrompts[lang]
	if !ok {
		prompts = quickPrompts[Default]
	}
	return append([]string(nil), prompts...)
}
