package paper

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/models"
)

// SaveResults upserts search results into the papers table, keyed by source
// URL (every arXiv entry has one; DOIs are often absent). Tags are written
// from the arXiv categories. Existing rows are reused, never updated.
func SaveResults(ctx context.Context, db *gorm.DB, results []Result) ([]models.Paper, error) {
	saved := make([]models.Paper, 0, len(results))
	for _, r := range results {
		var existing models.Paper
		err := db.WithContext(ctx).Where("source_url = ?", r.SourceURL).First(&existing).Error
		if err == nil {
			saved = append(saved, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		p := models.Paper{
			Title:       r.Title,
			Abstract:    r.Abstract,
			Authors:     r.Authors,
			PublishedAt: r.PublishedAt,
			SourceURL:   r.SourceURL,
		}
		if r.DOI != "" {
			doi := r.DOI
			p.DOI = &doi
		}
		if err := db.WithContext(ctx).Create(&p).Error; err != nil {
			return nil, err
		}
		for _, tag := range r.Categories {
			_ = db.WithContext(ctx).Create(&models.PaperTag{PaperID: p.ID, Tag: tag}).Error
		}
		saved = append(saved, p)
	}
	return saved, nil
}
