package cluster

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// jobRecord is opaque per-run bookkeeping for external job handles.
// It is never read back to resume a pipeline across process
// invocations; it exists only so a crashed run leaves a trail of which
// external jobs it submitted, for manual cleanup.
type jobRecord struct {
	ID        uint `gorm:"primarykey"`
	TaskName  string
	JobHandle string
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// scratchStore journals submitted jobs to a local SQLite file (or an
// in-memory database when path is empty).
type scratchStore struct {
	db *gorm.DB
}

func openScratchStore(path string) (*scratchStore, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, err
	}
	return &scratchStore{db: db}, nil
}

func (s *scratchStore) record(taskName, jobHandle string) error {
	return s.db.Create(&jobRecord{TaskName: taskName, JobHandle: jobHandle, State: "SUBMITTED"}).Error
}

func (s *scratchStore) updateState(jobHandle, state string) error {
	return s.db.Model(&jobRecord{}).Where("job_handle = ?", jobHandle).Update("state", state).Error
}
