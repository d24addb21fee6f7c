package app

import (
	"gorm.io/gorm"

	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/user"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

type Repos struct {
	Article     article.Repo
	Preferences user.PreferencesRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger, cfg Config) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Article:     article.NewRepo(db, log, cfg.EmbeddingDim),
		Preferences: user.NewPreferencesRepo(db, log),
	}
}
