package repos

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"

	"govee-client/internal/models"
)

const initSchema = `
  CREATE TABLE IF NOT EXISTS learned_device (
    device_id VARCHAR(64) PRIMARY KEY,
    set_brightness_max INTEGER,
    get_brightness_max INTEGER,
    turn_on_before_brightness INTEGER,
    offline_is_off INTEGER
  );
`

// LearningRepo is a sqlite-backed learning store. The store is addressed by
// device id and rewritten as a whole on every change, matching the learning
// contract.
type LearningRepo struct {
	logger *log.Logger
	db     *sql.DB
}

func NewLearningRepo(logger *log.Logger, db *sql.DB) (*LearningRepo, error) {
	_, err := db.Exec(initSchema)
	if err != nil {
		return nil, fmt.Errorf("error initialising learning schema: %w", err)
	}
	return &LearningRepo{logger: logger, db: db}, nil
}

func (r *LearningRepo) Read() (map[string]models.LearnedInfo, error) {
	rows, err := r.db.Query(`
    SELECT device_id,
           set_brightness_max,
           get_brightness_max,
           turn_on_before_brightness,
           offline_is_off
    FROM learned_device`)
	if err != nil {
		return nil, fmt.Errorf("error reading learned device info: %w", err)
	}
	defer rows.Close()

	infos := map[string]models.LearnedInfo{}
	for rows.Next() {
		var (
			id   string
			info models.LearnedInfo
		)
		if err := rows.Scan(&id, &info.SetBrightnessMax, &info.GetBrightnessMax, &info.TurnOnBeforeBrightness, &info.OfflineIsOff); err != nil {
			return nil, fmt.Errorf("error reading learned device info: %w", err)
		}
		infos[id] = info
	}

	return infos, rows.Err()
}

func (r *LearningRepo) Write(infos map[string]models.LearnedInfo) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("error writing learned device info: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM learned_device"); err != nil {
		return fmt.Errorf("error writing learned device info: %w", err)
	}
	for id, info := range infos {
		_, err := tx.Exec(
			`INSERT INTO learned_device
       (device_id, set_brightness_max, get_brightness_max, turn_on_before_brightness, offline_is_off)
     VALUES ($1, $2, $3, $4, $5);`,
			id,
			info.SetBrightnessMax,
			info.GetBrightnessMax,
			info.TurnOnBeforeBrightness,
			info.OfflineIsOff,
		)
		if err != nil {
			return fmt.Errorf("error writing learned device info (%s): %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error writing learned device info: %w", err)
	}
	return nil
}
