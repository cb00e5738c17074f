//go:build ignore

// Package main generates a synthetic brewing corpus for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -files 500 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Templates for the three content types the indexer ingests. The
// transcript reads like speech, the OCR text like slide fragments, and
// the notes like a brew log.
var transcriptTemplate = `So today we are brewing a %s, and before anything touches the kettle
I want to walk through the grain bill. The base is %s, with a little
%s on top for color and body. We are mashing in at %d degrees Celsius
and holding there for %d minutes, and I really want to stress that the
rest temperature matters more than most people think. A couple of
degrees one way or the other changes how fermentable the wort is.

Once we start %s, take your time. Rushing it pulls tannins out of the
grain husks and you will taste that in the finished beer. The target
preboil gravity today is 1.0%d, and we will boil for %d minutes.

For hops I am going with %s at the start of the boil for bittering,
about %d grams, and then %s in the last ten minutes where the
volatile oils survive. If you only remember one thing from this video,
make it this one: late additions are for aroma, early additions are
for bitterness, and no amount of stirring changes that.

After the boil we chill down to %d degrees and pitch %s. Keep the
fermentation in the low range for the first three days. This yeast
throws esters when it runs warm, and in a %s that is not what you
want. Give it %d days before you even think about packaging, and
check the gravity twice before you call it done.`

var ocrTemplate = `%s
%s

Water chemistry targets
Calcium: %d to %d ppm
Sulfate to chloride ratio drives hop expression
Carbonate only matters for dark grists

Mash schedule
Single infusion at %d C
Rest %d minutes
Mashout at 76 C optional for fly sparging

%s

Hop schedule
%d g %s at %d minutes
%d g %s at flameout
Dry hop %d g per liter for hop forward styles

Fermentation
Pitch at %d C
Free rise to %d C after day three
%s

Packaging
Target carbonation %d.%d volumes
Cold condition %d weeks for lagers`

var notesTemplate = `Brew day, batch %d. %s.

Mashed %s at %d C for %d minutes, iodine test clean. Collected %d
liters at 1.0%d preboil. %d minute boil with %s for bittering and
%s at the end. Final volume %d liters into the fermenter at 1.0%d.

Pitched %s rehydrated. Airlock active within %d hours. Held at %d C
in the chamber. Day four: gravity down to 1.0%d, krausen dropping.

Tasting notes from the last batch of this %s: %s. Next time %s.`

// Word pools for realistic brewing content.
var (
	styles = []string{
		"pale ale", "porter", "oatmeal stout", "pilsner", "wheat beer",
		"saison", "amber ale", "brown ale", "west coast IPA", "helles",
		"dry stout", "altbier", "cream ale", "rye ale", "dunkel",
	}
	baseMalts = []string{
		"pale malt", "pilsner malt", "Maris Otter", "Vienna malt",
		"Munich malt", "wheat malt",
	}
	specialtyMalts = []string{
		"crystal 60", "chocolate malt", "roasted barley", "biscuit malt",
		"special B", "flaked oats", "melanoidin malt", "carafa II",
	}
	hops = []string{
		"Cascade", "Saaz", "Fuggle", "Citra", "Hallertau Mittelfrueh",
		"Centennial", "East Kent Goldings", "Mosaic", "Simcoe", "Tettnang",
		"Magnum", "Willamette", "Perle", "Styrian Goldings",
	}
	yeasts = []string{
		"a clean American ale strain", "a dry English strain",
		"a Belgian abbey strain", "a German lager strain",
		"a classic saison strain", "a London ale strain",
	}
	processes = []string{
		"the vorlauf", "the sparge", "the whirlpool", "recirculating",
		"lautering", "batch sparging",
	}
	slideTitles = []string{
		"RECIPE DESIGN BASICS", "ALL GRAIN BREWING", "YEAST MANAGEMENT",
		"HOP CHEMISTRY", "WATER ADJUSTMENT", "FERMENTATION CONTROL",
		"OFF FLAVOR DIAGNOSIS", "KEGGING AND BOTTLING",
	}
	slideNotes = []string{
		"Oxygen is the enemy after fermentation starts",
		"Always measure, never guess",
		"Repeatability beats complexity",
		"Sanitation covers a multitude of sins",
	}
	tastingNotes = []string{
		"good malt depth, slightly undercarbonated",
		"clean fermentation, hop aroma faded fast",
		"great head retention, body a touch thin",
		"esters well balanced, finish a little sweet",
	}
	adjustments = []string{
		"raise the mash temperature by one degree",
		"move half the bittering charge to the whirlpool",
		"pitch a second pack of yeast",
		"cut the boil to sixty minutes",
		"harden the water with a gram of gypsum",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	// One subdirectory per content type, matching a sources list of
	// transcripts, OCR text, and manual notes.
	subdirs := []string{"transcripts", "ocr", "notes"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d files in %s...\n", *numFiles, *outputDir)

	// Distribute files across content types: half transcripts, the
	// rest split between OCR text and notes.
	transcriptFiles := *numFiles * 50 / 100
	ocrFiles := *numFiles * 30 / 100
	noteFiles := *numFiles - transcriptFiles - ocrFiles

	generated := 0

	for i := 0; i < transcriptFiles; i++ {
		if err := generateTranscript(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating transcript %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < ocrFiles; i++ {
		if err := generateOCRText(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating OCR text %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < noteFiles; i++ {
		if err := generateNotes(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating notes %d: %v\n", i, err)
		}
		generated++
	}

	fmt.Printf("Generated %d files successfully.\n", generated)
}

func randomWord(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func generateTranscript(rng *rand.Rand, index int) error {
	style := randomWord(rng, styles)

	content := fmt.Sprintf(transcriptTemplate,
		style,
		randomWord(rng, baseMalts), randomWord(rng, specialtyMalts),
		64+rng.Intn(6), 45+rng.Intn(31),
		randomWord(rng, processes),
		40+rng.Intn(30), 60+rng.Intn(31),
		randomWord(rng, hops), 20+rng.Intn(40),
		randomWord(rng, hops),
		17+rng.Intn(5), randomWord(rng, yeasts),
		style, 10+rng.Intn(11),
	)

	name := strings.ReplaceAll(style, " ", "-")
	filename := filepath.Join(*outputDir, "transcripts", fmt.Sprintf("%s-episode-%03d.txt", name, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateOCRText(rng *rand.Rand, index int) error {
	title := randomWord(rng, slideTitles)
	minCa := 50 + rng.Intn(50)

	content := fmt.Sprintf(ocrTemplate,
		title,
		strings.Repeat("=", len(title)),
		minCa, minCa+50+rng.Intn(50),
		64+rng.Intn(6), 45+rng.Intn(31),
		randomWord(rng, slideNotes),
		15+rng.Intn(30), randomWord(rng, hops), 60,
		20+rng.Intn(40), randomWord(rng, hops),
		2+rng.Intn(4),
		17+rng.Intn(4), 20+rng.Intn(3),
		randomWord(rng, slideNotes),
		2, 2+rng.Intn(6), 3+rng.Intn(4),
	)

	filename := filepath.Join(*outputDir, "ocr", fmt.Sprintf("slide-deck-%03d.txt", index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateNotes(rng *rand.Rand, index int) error {
	style := randomWord(rng, styles)
	heading := strings.ToUpper(style[:1]) + style[1:]

	content := fmt.Sprintf(notesTemplate,
		index+1, heading,
		randomWord(rng, baseMalts), 64+rng.Intn(6), 45+rng.Intn(31),
		25+rng.Intn(8), 40+rng.Intn(30),
		60+rng.Intn(31), randomWord(rng, hops),
		randomWord(rng, hops), 19+rng.Intn(6), 45+rng.Intn(25),
		randomWord(rng, yeasts), 8+rng.Intn(24), 18+rng.Intn(4),
		10+rng.Intn(15),
		style, randomWord(rng, tastingNotes), randomWord(rng, adjustments),
	)

	filename := filepath.Join(*outputDir, "notes", fmt.Sprintf("batch-%03d.txt", index))
	return os.WriteFile(filename, []byte(content), 0644)
}
