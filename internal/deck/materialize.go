package deck

import "math/rand"

// BuildRuntime materializes a playable quiz deck from raw cards: it samples
// up to size cards without replacement and builds each card's option set from
// the correct answer plus distractors drawn from the other cards' answers.
// Decks with fewer than optionCount distinct answers degrade to smaller
// option sets rather than failing. All shuffles are uniform Fisher-Yates.
func BuildRuntime(cards []Card, size, optionCount int, rng *rand.Rand) []QuizItem {
	if len(cards) == 0 || size <= 0 {
		return nil
	}
	if optionCount < 2 {
		optionCount = 2
	}

	picked := sampleCards(cards, size, rng)

	// Distinct answer pool across the whole deck, used for distractors.
	seen := make(map[string]struct{}, len(cards))
	pool := make([]string, 0, len(cards))
	for _, c := range cards {
		if _, ok := seen[c.Back]; ok {
			continue
		}
		seen[c.Back] = struct{}{}
		pool = append(pool, c.Back)
	}

	items := make([]QuizItem, 0, len(picked))
	for _, c := range picked {
		options := buildOptions(c.Back, pool, optionCount, rng)
		items = append(items, QuizItem{
			Prompt:  c.Front,
			Answer:  c.Back,
			Options: options,
		})
	}
	return items
}

func sampleCards(cards []Card, size int, rng *rand.Rand) []Card {
	if size > len(cards) {
		size = len(cards)
	}
	picked := make([]Card, 0, size)
	for _, i := range rng.Perm(len(cards))[:size] {
		picked = append(picked, cards[i])
	}
	return picked
}

// buildOptions returns the correct answer plus up to optionCount-1 distinct
// distractors, uniformly shuffled.
func buildOptions(correct string, pool []string, optionCount int, rng *rand.Rand) []string {
	distractors := make([]string, 0, len(pool))
	for _, answer := range pool {
		if answer != correct {
			distractors = append(distractors, answer)
		}
	}

	want := optionCount - 1
	if want > len(distractors) {
		want = len(distractors)
	}

	options := make([]string, 0, want+1)
	for _, i := range rng.Perm(len(distractors))[:want] {
		options = append(options, distractors[i])
	}
	options = append(options, correct)

	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}
