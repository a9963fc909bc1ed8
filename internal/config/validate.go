package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if err := c.SRS.validate(); err != nil {
		return fmt.Errorf("srs: %w", err)
	}
	if err := c.Import.validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}

func (s *SRSConfig) validate() error {
	if s.MinEase <= 0 {
		return fmt.Errorf("min_ease must be > 0 (got %v)", s.MinEase)
	}
	if s.MaxEase < s.MinEase {
		return fmt.Errorf("max_ease (%v) must be >= min_ease (%v)", s.MaxEase, s.MinEase)
	}
	if s.DefaultEase < s.MinEase || s.DefaultEase > s.MaxEase {
		return fmt.Errorf("default_ease (%v) must be within [min_ease, max_ease]", s.DefaultEase)
	}
	if s.LeechThreshold <= 0 {
		return fmt.Errorf("leech_threshold must be > 0 (got %d)", s.LeechThreshold)
	}
	return nil
}

func (i *ImportConfig) validate() error {
	if i.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", i.BatchSize)
	}
	if i.TxBatchSize <= 0 {
		return fmt.Errorf("tx_batch_size must be > 0 (got %d)", i.TxBatchSize)
	}
	if i.BatchSize > i.TxBatchSize {
		return fmt.Errorf("batch_size (%d) must be <= tx_batch_size (%d)", i.BatchSize, i.TxBatchSize)
	}
	if i.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be > 0 (got %d)", i.MaxConcurrent)
	}
	return nil
}
