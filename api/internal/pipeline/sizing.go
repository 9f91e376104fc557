package pipeline

import "lexie-server/api/internal/chunk"

type Bucket string

const (
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
)

const (
	lowMax    = 3000
	mediumMax = 8000

	// вызовы с большим ответом собираем стримом
	streamFrom = 3000
)

// BucketFor считает символы, не байты.
func BucketFor(text string) Bucket {
	switch n := chunk.Len(text); {
	case n <= lowMax:
		return BucketLow
	case n <= mediumMax:
		return BucketMedium
	default:
		return BucketHigh
	}
}

func ConceptCardCount(b Bucket) int {
	switch b {
	case BucketHigh:
		return 6
	case BucketMedium:
		return 4
	default:
		return 3
	}
}

func FlashcardCount(b Bucket, vocabulary bool) int {
	switch {
	case vocabulary && b == BucketHigh:
		return 25
	case vocabulary && b == BucketMedium:
		return 20
	case vocabulary:
		return 15
	case b == BucketHigh:
		return 20
	case b == BucketMedium:
		return 15
	default:
		return 12
	}
}

func QuizCount(b Bucket) int {
	switch b {
	case BucketHigh:
		return 15
	case BucketMedium:
		return 10
	default:
		return 8
	}
}

// maxParts - сколько кусков длинного документа получают свои вызовы карточек и теста.
const maxParts = 3

type part struct {
	Input string
	Count int
}

// splitParts раскладывает count между кусками документа пропорционально длине.
// Короткий документ - один вызов. Куски после maxParts в генерацию не попадают.
func splitParts(chunks []string, count int) []part {
	if len(chunks) <= 1 || count <= 1 {
		return []part{{Input: chunk.Budget(chunks, chunk.DefaultBound), Count: count}}
	}
	chunks = chunks[:min(len(chunks), maxParts, count)]

	total := 0
	for _, c := range chunks {
		total += chunk.Len(c)
	}
	out := make([]part, len(chunks))
	left := count
	for i, c := range chunks {
		n := 1
		if total > 0 {
			n = max(1, count*chunk.Len(c)/total)
		}
		n = min(n, left-(len(chunks)-1-i))
		out[i] = part{Input: chunk.Budget([]string{c}, chunk.DefaultBound), Count: n}
		left -= n
	}
	// остаток от округления - первому куску
	out[0].Count += left
	return out
}

const (
	homeworkIntroEN = "I've reviewed your content. Here's some guidance to help you solve this problem."
	homeworkIntroFI = "Kävin tehtäväsi läpi. Näistä ohjeista voisi olla hyötyä sinulle ongelman ratkaisemiseen."
	studyIntroEN    = "I analyzed your content. Here's some material to help you master this subject."
	studyIntroFI    = "Analysoin tekstisi. Tässä on materiaalia, joka auttaa sinua hallitsemaan tämän aiheen."
)

func homeworkIntro(language string) string {
	if isFinnish(language) {
		return homeworkIntroFI
	}
	return homeworkIntroEN
}

func studyIntro(language string) string {
	if isFinnish(language) {
		return studyIntroFI
	}
	return studyIntroEN
}
