package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/entities"
	"github.com/mrlokans/locallibrary/internal/entrypoint"
)

type seedBook struct {
	title, isbn, summary string
	author               int // index into seedAuthors
	genres               []string
	copies               []entities.LoanStatus
}

var (
	seedGenres    = []string{"Fantasy", "Science Fiction", "Western", "Poetry"}
	seedLanguages = []string{"English", "French"}
	seedAuthors   = []catalog.AuthorInput{
		{FirstName: "Patrick", LastName: "Rothfuss"},
		{FirstName: "Isaac", LastName: "Asimov"},
		{FirstName: "Ursula", LastName: "Le Guin"},
	}
	seedBooks = []seedBook{
		{
			title: "The Name of the Wind", isbn: "9780756404741", author: 0,
			summary: "The tale of Kvothe, from his childhood in a troupe of traveling players to his years in the University.",
			genres:  []string{"Fantasy"},
			copies:  []entities.LoanStatus{entities.LoanStatusAvailable, entities.LoanStatusMaintenance},
		},
		{
			title: "The Wise Man's Fear", isbn: "9780756407919", author: 0,
			summary: "Kvothe continues the story of his life, told over the second of three days.",
			genres:  []string{"Fantasy"},
			copies:  []entities.LoanStatus{entities.LoanStatusAvailable},
		},
		{
			title: "Foundation", isbn: "9780553293357", author: 1,
			summary: "Hari Seldon foresees the fall of the Galactic Empire and plans for what comes after.",
			genres:  []string{"Science Fiction"},
			copies:  []entities.LoanStatus{entities.LoanStatusAvailable, entities.LoanStatusReserved},
		},
		{
			title: "A Wizard of Earthsea", isbn: "9780547773742", author: 2,
			summary: "A young mage releases a shadow into the world and must hunt it down.",
			genres:  []string{"Fantasy"},
			copies:  []entities.LoanStatus{entities.LoanStatusAvailable},
		},
	}
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a small sample catalog into an empty database",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			created, err := seedCatalog(cmd.Context(), app.Catalog)
			if err != nil {
				return err
			}
			if created == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Catalog already has books, nothing to do")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d books\n", created)
			return nil
		}),
	}
}

// seedCatalog fills an empty catalog and reports how many books it created.
func seedCatalog(ctx context.Context, svc *catalog.Service) (int, error) {
	existing, err := svc.ListBooks(ctx, 1)
	if err != nil {
		return 0, err
	}
	if existing.Total > 0 {
		return 0, nil
	}

	genreIDs := make(map[string]uint, len(seedGenres))
	for _, name := range seedGenres {
		g, err := svc.CreateGenre(ctx, operator, name)
		if err != nil {
			return 0, fmt.Errorf("failed to seed genre %s: %w", name, err)
		}
		genreIDs[name] = g.ID
	}

	var languageIDs []uint
	for _, name := range seedLanguages {
		l, err := svc.CreateLanguage(ctx, operator, name)
		if err != nil {
			return 0, fmt.Errorf("failed to seed language %s: %w", name, err)
		}
		languageIDs = append(languageIDs, l.ID)
	}

	authorIDs := make([]uint, 0, len(seedAuthors))
	for _, in := range seedAuthors {
		a, err := svc.CreateAuthor(ctx, operator, in)
		if err != nil {
			return 0, fmt.Errorf("failed to seed author %s: %w", in.LastName, err)
		}
		authorIDs = append(authorIDs, a.ID)
	}

	for _, sb := range seedBooks {
		in := catalog.BookInput{
			Title:       sb.title,
			Summary:     sb.summary,
			ISBN:        sb.isbn,
			AuthorID:    &authorIDs[sb.author],
			LanguageIDs: languageIDs[:1],
		}
		for _, g := range sb.genres {
			in.GenreIDs = append(in.GenreIDs, genreIDs[g])
		}
		book, err := svc.CreateBook(ctx, operator, in)
		if err != nil {
			return 0, fmt.Errorf("failed to seed book %s: %w", sb.title, err)
		}

		for i, status := range sb.copies {
			_, err := svc.CreateInstance(ctx, operator, catalog.InstanceInput{
				BookID:  book.ID,
				Imprint: fmt.Sprintf("%s, printing %d", sb.title, i+1),
				Status:  status,
			})
			if err != nil {
				return 0, fmt.Errorf("failed to seed copy of %s: %w", sb.title, err)
			}
		}
	}
	return len(seedBooks), nil
}
