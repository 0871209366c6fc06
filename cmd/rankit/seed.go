package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/rankit"
	"github.com/poiesic/rankit/core"
	"github.com/urfave/cli/v2"
)

// sample is a built-in seed document.
type sample struct {
	text     string
	price    float64
	lat, lng float64
}

var samples = []sample{
	{"Corner bakery with sourdough loaves and morning croissants", 4.5, 48.8566, 2.3522},
	{"Night market selling grilled skewers and sweet mango sticky rice", 3.0, 13.7563, 100.5018},
	{"Quiet bookshop with a reading room and strong filter coffee", 6.0, 51.5072, -0.1276},
	{"Harbor fish restaurant serving grilled sardines at sunset", 18.0, 38.7223, -9.1393},
	{"Rooftop bar with a view of the old cathedral and cold beer", 7.5, 41.3874, 2.1686},
	{"Ramen counter open late with rich pork broth and soft eggs", 11.0, 35.6762, 139.6503},
	{"Family pizzeria baking wood fired margherita in a stone oven", 9.0, 40.8518, 14.2681},
	{"Tea house pouring jasmine and oolong in a bamboo garden", 5.0, 30.2741, 120.1551},
	{"Bicycle repair shop that also sells espresso and pastries", 3.5, 52.3676, 4.9041},
	{"Taqueria with handmade tortillas and spicy salsa verde", 2.5, 19.4326, -99.1332},
	{"Vinyl record store hosting live jazz every friday night", 0.0, 40.7128, -74.006},
	{"Mountain hut serving cheese fondue after a long hike", 24.0, 46.0207, 7.7491},
	{"Ice cream parlor with pistachio gelato and lemon sorbet", 4.0, 41.9028, 12.4964},
	{"Dumpling house steaming pork and chive dumplings all day", 6.5, 22.3193, 114.1694},
	{"Seafood shack frying clams and lobster rolls by the pier", 22.0, 42.3601, -71.0589},
	{"Bagel bakery with smoked salmon and cream cheese", 8.0, 45.5017, -73.5673},
	{"Street cart selling hot dogs and pretzels near the park", 3.0, 40.7812, -73.9665},
	{"Chocolate workshop teaching truffle making on weekends", 35.0, 50.8503, 4.3517},
	{"Noodle bar with hand pulled noodles and chili oil", 7.0, 34.3416, 108.9398},
	{"Fish market stall grilling octopus with lemon and olive oil", 14.0, 37.9838, 23.7275},
	{"Waterfront cafe with flat white coffee and banana bread", 5.5, -33.8688, 151.2093},
	{"Steakhouse grilling beef over charcoal with chimichurri", 30.0, -34.6037, -58.3816},
	{"Vegan kitchen serving lentil curry and coconut rice", 10.0, 12.9716, 77.5946},
	{"Beer hall with pretzels, sausages and long wooden tables", 12.0, 48.1351, 11.582},
	{"Herring stand selling pickled fish with onions", 3.5, 52.3702, 4.8952},
	{"Crepe stand folding buckwheat galettes with ham and egg", 6.0, 48.1173, -1.6778},
	{"Sushi bar with an omakase menu at a small wooden counter", 80.0, 35.6895, 139.6917},
	{"Coffee roastery selling single origin beans by the bag", 15.0, 47.6062, -122.3321},
	{"Food truck frying fish tacos with cabbage and lime", 4.0, 32.7157, -117.1611},
	{"Bakery known for cinnamon buns and cardamom knots", 4.0, 59.3293, 18.0686},
	{"Wine bar pouring natural wine with cheese plates", 13.0, 45.764, 4.8357},
	{"Spice market selling saffron, sumac and dried rose petals", 9.0, 41.0082, 28.9784},
	{"Curry house serving butter chicken with garlic naan", 12.0, 28.6139, 77.209},
	{"Pho shop ladling beef broth with fresh herbs at dawn", 4.0, 21.0278, 105.8342},
	{"Smokehouse serving brisket and pork ribs by the pound", 19.0, 30.2672, -97.7431},
	{"Tapas bar with croquetas, jamon and vermouth on tap", 11.0, 40.4168, -3.7038},
	{"Bistro serving onion soup and steak frites", 21.0, 48.8606, 2.3376},
	{"Kebab stand grilling lamb and chicken skewers until midnight", 5.0, 52.52, 13.405},
	{"Tea room serving scones with clotted cream and jam", 9.5, 50.7184, -3.5339},
	{"Juice bar blending mango, papaya and passion fruit", 3.5, -22.9068, -43.1729},
}

func seedCommand(c *cli.Context) error {
	ctx := context.Background()

	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	workers := c.Int("workers")
	if workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fields, err := seedSettings(ctx, db)
	if err != nil {
		return err
	}

	var source iter.Seq[sample]
	if src := c.String("src"); src != "" {
		source, err = samplesFromFile(src)
		if err != nil {
			return err
		}
	} else {
		source = samplesFromSlice(samples)
	}

	docs, err := buildDocuments(db, fields, source)
	if err != nil {
		return err
	}
	slog.Info("seeding", "documents", len(docs), "batchSize", batchSize, "workers", workers)

	progress := newProgressTracker(os.Stderr, len(docs), c.Int("report-interval"))
	if err := writeBatched(ctx, db, docs, batchSize, workers, progress); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	progress.finish()
	return nil
}

// seedFields are the field ids of seeded documents.
type seedFields struct {
	title, body, text, price, lat, lng core.FieldID
}

// seedSettings declares the seed fields in the index settings.
func seedSettings(ctx context.Context, db *rankit.Database) (seedFields, error) {
	current, err := db.Settings(ctx)
	if err != nil {
		return seedFields{}, err
	}
	settings := current.Clone()
	var f seedFields
	f.title = settings.AddField("title", true)
	f.body = settings.AddField("body", true)
	f.text = settings.AddField("text", false)
	f.price = settings.AddField("price", false)
	f.lat = settings.AddField(core.GeoLatFieldName, false)
	f.lng = settings.AddField(core.GeoLngFieldName, false)
	if err := core.ValidateSettings(settings); err != nil {
		return seedFields{}, err
	}
	return f, db.IndexWriter().PutSettings(ctx, settings)
}

// buildDocuments assigns ids to the samples, skipping blank and repeated texts.
func buildDocuments(db *rankit.Database, f seedFields, source iter.Seq[sample]) ([]*core.Document, error) {
	seen := make(map[core.ID]bool)
	var docs []*core.Document
	for s := range source {
		words := tokenize(s.text)
		if len(words) == 0 {
			continue
		}
		key := core.IDFromContent(strings.Join(words, " "))
		if seen[key] {
			continue
		}
		seen[key] = true

		id, err := db.NextDocumentID()
		if err != nil {
			return nil, err
		}
		docs = append(docs, &core.Document{
			ID: id,
			Words: map[core.FieldID][]string{
				f.title: words[:min(3, len(words))],
				f.body:  words,
			},
			Numbers: map[core.FieldID]float64{
				f.price: s.price,
				f.lat:   s.lat,
				f.lng:   s.lng,
			},
			Strings: map[core.FieldID]string{f.text: s.text},
		})
	}
	return docs, nil
}

// writeBatched writes docs in batches on a pool of workers.
func writeBatched(ctx context.Context, db *rankit.Database, docs []*core.Document, batchSize, workers int, progress *progressTracker) error {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for start := 0; start < len(docs); start += batchSize {
		batch := docs[start:min(start+batchSize, len(docs))]
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := db.IndexWriter().AddDocuments(ctx, batch...); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			progress.add(len(batch))
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// samplesFromFile returns an iterator over the lines of a file. Lines carry
// no price; their coordinates are derived from their content.
func samplesFromFile(filename string) (iter.Seq[sample], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(sample) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			id := uint64(core.IDFromContent(line))
			s := sample{
				text:  line,
				price: float64(id%10000) / 100,
				lat:   float64(id%18000)/100 - 90,
				lng:   float64((id>>16)%36000)/100 - 180,
			}
			if !yield(s) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("error reading seed file", "file", filename, "err", err)
		}
	}, nil
}

func samplesFromSlice(items []sample) iter.Seq[sample] {
	return func(yield func(sample) bool) {
		for _, s := range items {
			if !yield(s) {
				return
			}
		}
	}
}

// tokenize splits text into lower cased words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
