package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	app "linac-qc/internal/application"
	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/field"
	"linac-qc/internal/infrastructure/vision"
)

// Settings параметры анализа из YAML-файла.
type Settings struct {
	Detector         vision.DetectorParams      `yaml:"detector"`
	ReferenceProfile []entity.ReferencePosition `yaml:"reference_profile"`

	Field struct {
		ExpectedSizes []entity.ExpectedFieldSize `yaml:"expected_sizes"`
		Tolerance     float64                    `yaml:"tolerance"` // мм
	} `yaml:"field"`

	Blades struct {
		Nominal   []float64 `yaml:"nominal"` // мм
		Tolerance float64   `yaml:"tolerance"`
	} `yaml:"blades"`

	Shape struct {
		ExpectedAngle float64 `yaml:"expected_angle"` // градусы
		Tolerance     float64 `yaml:"tolerance"`
	} `yaml:"shape"`

	Slits field.SlitParams `yaml:"slits"`
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() *Settings {
	analysis := app.DefaultAnalysisSettings()

	s := &Settings{
		Detector:         vision.DefaultDetectorParams(),
		ReferenceProfile: entity.DefaultLeafPositions(),
	}
	s.Field.ExpectedSizes = analysis.ExpectedFieldSizes
	s.Field.Tolerance = analysis.FieldTolerance
	s.Blades.Nominal = analysis.BladeNominal
	s.Blades.Tolerance = analysis.BladeTolerance
	s.Shape.ExpectedAngle = analysis.ExpectedAngle
	s.Shape.Tolerance = analysis.AngleTolerance
	s.Slits = analysis.Slits
	return s
}

// LoadSettings читает YAML-файл поверх значений по умолчанию.
// Если файла нет, возвращаются значения по умолчанию.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading settings file")
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "error parsing settings file")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Profile строит эталонный профиль позиций.
func (s *Settings) Profile() (*entity.ReferenceProfile, error) {
	return entity.NewReferenceProfile(s.ReferenceProfile)
}

// Analysis собирает настройки сервисов с центром MV из окружения.
func (s *Settings) Analysis(center entity.MVCenter) app.AnalysisSettings {
	return app.AnalysisSettings{
		MVCenter:           center,
		ExpectedFieldSizes: s.Field.ExpectedSizes,
		FieldTolerance:     s.Field.Tolerance,
		BladeNominal:       s.Blades.Nominal,
		BladeTolerance:     s.Blades.Tolerance,
		ExpectedAngle:      s.Shape.ExpectedAngle,
		AngleTolerance:     s.Shape.Tolerance,
		Slits:              s.Slits,
	}
}

func (s *Settings) validate() error {
	d := s.Detector
	if d.KernelSize <= 0 || d.ClaheTileSize <= 0 {
		return errors.New("detector kernel_size and clahe_tile_size must be positive")
	}
	if d.MinArea < 0 || d.MergeDistance < 0 || d.RowAlignment < 0 {
		return errors.New("detector distances and areas must not be negative")
	}
	if s.Field.Tolerance < 0 || s.Blades.Tolerance < 0 || s.Shape.Tolerance < 0 {
		return errors.New("tolerances must not be negative")
	}
	if s.Shape.ExpectedAngle <= 0 || s.Shape.ExpectedAngle >= 180 {
		return errors.New("shape expected_angle must be between 0 and 180 degrees")
	}
	sl := s.Slits
	if sl.UStart < 0 || sl.UEnd <= sl.UStart || sl.BladeWidth <= 0 || sl.ProfileWidth <= 0 {
		return errors.New("slits u_start, u_end, blade_width and profile_width are inconsistent")
	}
	if sl.VRange <= 0 || sl.MinEdgeSeparation < 0 || sl.MinWidth < 0 || sl.MaxWidth <= sl.MinWidth {
		return errors.New("slits v_range and width limits are inconsistent")
	}
	if _, err := s.Profile(); err != nil {
		return errors.Wrap(err, "invalid reference_profile")
	}
	return nil
}
