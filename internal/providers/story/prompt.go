package story

import (
	"fmt"
	"strings"

	"server/internal/domain"
)

// Genre and tone identifiers arrive as form values; the maps expand them to
// the Polish descriptions the model is prompted with. Unknown values pass
// through verbatim so new form options degrade gracefully.
var genreDescriptions = map[string]string{
	"magiczny_realizm":     "magiczny realizm - świat rzeczywisty z elementami magii",
	"klasyczna_basn":       "klasyczna baśń - królestwa, smoki, zamki, magiczne stworzenia",
	"przygoda_historyczna": "przygoda historyczna lub fantastyka naukowa",
	"krytyczna_przygoda":   "kryminał lub tajemnicza zagadka do rozwiązania",
	"podroz_kosmiczna":     "podróż kosmiczna lub futurystyczny świat",
	"fantastyka_zwierzeta": "świat mówiących zwierząt",
	"komedia_absurdalna":   "komedia absurdalna z elementami nonsensu",
}

var toneDescriptions = map[string]string{
	"relaksacyjny_usypiajacy": "relaksacyjny, spokojny ton na dobranoc",
	"dynamiczny_motywujacy":   "dynamiczny i motywujący ton, pełen energii",
	"ciekawy_edukacyjny":      "ciekawy i edukacyjny, z elementami nauki",
}

const styleYoung = `
- Używaj prostego słownictwa i krótkich zdań (5-10 słów)
- Stosuj powtórzenia i rytmiczne struktury
- Opisy powinny być konkretne i wizualne
- Unikaj abstrakcyjnych pojęć
- Używaj dużo dźwiękonaśladowczych słów (bum, chlup, au)
`

const styleMiddle = `
- Używaj bogatszego słownictwa, ale wciąż zrozumiałego
- Zdania mogą być dłuższe (10-15 słów)
- Dodaj więcej szczegółów i opisów
- Możesz wprowadzić lekkie napięcie i zagadki
- Humor i zabawy słowne są mile widziane
`

const styleOlder = `
- Używaj bardziej złożonych zdań i bogatego słownictwa
- Wprowadź głębsze emocje i motywy
- Dodaj więcej warstw do fabuły
- Możesz używać metafor i porównań
- Narracja może być bardziej subtelna
`

// BuildSystemPrompt returns the narrator instruction block, with writing
// style guidelines keyed to the child's age band (3-5, 6-8, 9+).
func BuildSystemPrompt(childAge int) string {
	var style string
	switch {
	case childAge >= 3 && childAge <= 5:
		style = styleYoung
	case childAge >= 6 && childAge <= 8:
		style = styleMiddle
	default:
		style = styleOlder
	}

	return `Jesteś doświadczonym autorem bajek dla dzieci w języku polskim. Twoim zadaniem jest stworzyć piękną, angażującą bajkę.

WYTYCZNE DOTYCZĄCE STYLU:
` + style + `
DŁUGOŚĆ BAJKI:
- Napisz bajkę o długości około 1900-2200 słów (bardzo ważne!)
- Bajka powinna nadawać się do czytania przez około 10-12 minut
- Historia powinna być zwięzła ale kompletna - pełna głębia w zwartej formie
- Rozwijaj kluczowe sceny, unikaj zbędnych szczegółów

STRUKTURA BAJKI:
1. Wprowadzenie (10-15% długości) - przedstawienie bohatera i świata
2. Rozwinięcie (30-40%) - przygoda się zaczyna, pojawiają się wyzwania
3. Kulminacja (20-30%) - największe wyzwanie, moment napięcia
4. Rozwiązanie (20-30%) - lekcja zostaje przyswojona, szczęśliwe zakończenie
5. Morał (5-10%) - subtelne podsumowanie nauki

WAŻNE:
- Pisz w tonie ciepłym, pełnym empatii
- Historia powinna być optymistyczna i dodająca otuchy
- Unikaj strachu i przemocy - zastąp je mądrością i dobrocią
- Pamiętaj, że bajka będzie czytana głośno - używaj melodyjnego języka
- Włącz elementy podane przez rodzica (imię, zwierzęta, miejsca, rodzeństwo)
- Na końcu bajki NIE dodawaj fraz typu "Koniec", "To była bajka o..." - zakończ naturalnie historią

TON NARRACJI:
- Ciepły, łagodny, pełen miłości
- Jakby rodzic czytał dziecku przed snem
- Spokojna narracja, bez pośpiechu
`
}

// BuildUserPrompt renders the personalization form into the request block.
// Optional fields only appear when the parent filled them in.
func BuildUserPrompt(req domain.StoryRequest) string {
	genre := req.StoryGenre
	if d, ok := genreDescriptions[genre]; ok {
		genre = d
	}
	tone := req.StoryTone
	if d, ok := toneDescriptions[tone]; ok {
		tone = d
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Napisz bajkę dla %d-letniego dziecka o imieniu %s.\n\n", req.ChildAge, req.ChildName)
	fmt.Fprintf(&b, "GATUNEK: %s\n", genre)
	fmt.Fprintf(&b, "TON: %s\n", tone)
	fmt.Fprintf(&b, "GŁÓWNA LEKCJA/MORAŁ: %s\n", req.StoryLesson)

	if v := deref(req.PetMascot); v != "" {
		fmt.Fprintf(&b, "\nULUBIONE ZWIERZĘ/MASKOTKA: %s (włącz to zwierzę jako ważną postać w bajce)", v)
	}
	if v := deref(req.SiblingsFriends); v != "" {
		fmt.Fprintf(&b, "\nRODZEŃSTWO/PRZYJACIELE: %s (włącz te postacie do bajki)", v)
	}
	if v := deref(req.FavoriteFoodPlace); v != "" {
		fmt.Fprintf(&b, "\nULUBIONE MIEJSCE/JEDZENIE: %s (włącz ten element do fabuły)", v)
	}
	if v := deref(req.CurrentEmotionalChallenge); v != "" {
		fmt.Fprintf(&b, "\nAKTUALNE WYZWANIE: %s (delikatnie porusz ten temat w bajce, pokazując jak go pokonać)", v)
	}
	if req.RequestDialogHumor {
		b.WriteString("\n\nUWAGA: Rodzic prosił o więcej dialogu i humoru - dodaj zabawne rozmowy między postaciami i sytuacje komediowe!")
	}

	fmt.Fprintf(&b, `

PAMIĘTAJ:
- Długość: około 1500-1800 słów (to jest KRYTYCZNE wymaganie!)
- Bajka powinna być zwięzła ale kompletna - około 10-12 minut czytania
- Opowiadaj kluczowe sceny, unikaj rozbudowanych opisów
- Bajka powinna mieć początek, rozwinięcie i zakończenie
- Włącz wszystkie podane elementy w naturalny sposób
- Głównym bohaterem jest %s
- Zakończ bajkę w sposób pełen nadziei i radości
- NIE dodawaj nagłówków ani oznaczeń typu "Tytuł:", "Koniec" - tylko czysty tekst bajki

WAŻNE: Ta bajka będzie czytana przez 10-12 minut, więc powinna być zwięzła!
Zacznij od pierwszego zdania bajki i pisz do końca. Nie dodawaj żadnych meta-komentarzy.`, req.ChildName)

	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
