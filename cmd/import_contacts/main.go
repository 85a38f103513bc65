// Bulk contact importer: reads a JSON file of contacts and upserts them
// into the store, isolating per-row failures.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/config"
	"whatsapp-dispatch/internal/database"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

type contactRow struct {
	PhoneNumber string   `json:"phone_number"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	OptInStatus string   `json:"opt_in_status"`
	Tags        []string `json:"tags"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	file := flag.String("file", "", "path to a JSON array of contacts")
	flag.Parse()
	if *file == "" {
		log.Fatal().Msg("usage: import_contacts -file contacts.json")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("reading input file")
	}
	var rows []contactRow
	if err := json.Unmarshal(data, &rows); err != nil {
		log.Fatal().Err(err).Msg("parsing input file")
	}

	cfg := config.LoadConfig()
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	st := store.NewGorm(db)

	ctx := context.Background()
	imported := 0
	for _, row := range rows {
		if err := importRow(ctx, st, row); err != nil {
			log.Error().Err(err).Str("phone", row.PhoneNumber).Msg("skipping contact")
			continue
		}
		imported++
	}
	log.Info().Int("imported", imported).Int("total", len(rows)).Msg("import finished")
}

func importRow(ctx context.Context, st store.Store, row contactRow) error {
	phone, err := models.CanonicalPhone(row.PhoneNumber)
	if err != nil {
		return err
	}

	contact, err := st.GetContact(ctx, phone)
	if err != nil {
		contact = &models.Contact{
			PhoneNumber: phone,
			WhatsAppID:  models.WhatsAppJID(phone),
			OptInStatus: models.OptedIn,
			Tags:        "[]",
		}
	}
	if row.Name != "" {
		contact.Name = row.Name
	}
	if row.Email != "" {
		contact.Email = row.Email
	}
	if row.OptInStatus != "" {
		contact.OptInStatus = row.OptInStatus
	}
	if len(row.Tags) > 0 {
		var tags []string
		json.Unmarshal([]byte(contact.Tags), &tags)
		for _, tag := range row.Tags {
			exists := false
			for _, t := range tags {
				if t == tag {
					exists = true
					break
				}
			}
			if !exists {
				tags = append(tags, tag)
			}
		}
		data, _ := json.Marshal(tags)
		contact.Tags = string(data)
	}
	return st.SaveContact(ctx, contact)
}
