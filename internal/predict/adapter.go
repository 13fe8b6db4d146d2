// Package predict turns raw family form records into stunting risk scores,
// via a trained classifier artifact, a remote scoring service, or a
// heuristic fallback.
package predict

import (
	"context"
	"fmt"

	"github.com/stuntlytics/stuntlytics/internal/domain"
)

// EncodingError reports a categorical value with no defined mapping entry.
// An unrecognized category is a data error and is never coerced.
type EncodingError struct {
	Field string
	Value string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("no encoding for %s=%q", e.Field, e.Value)
}

// ArtifactError reports a classifier artifact misconfiguration, such as a
// feature-width mismatch. Fatal for the request that hit it.
type ArtifactError struct {
	Message string
}

func (e *ArtifactError) Error() string {
	return "artifact: " + e.Message
}

// Artifact is a trained binary classifier. PredictProba returns the
// positive-class probability and the predicted class (1 = stunting).
type Artifact interface {
	FeatureCount() int
	PredictProba(ctx context.Context, features []float64) (proba float64, class int, err error)
}

// Categorical encodings replicate the training preprocessing exactly. Each
// table is total over the form's option set; anything else is an
// EncodingError.
var (
	encChildSex     = map[string]float64{"Laki-laki": 0, "Perempuan": 1}
	encWaterAccess  = map[string]float64{"Layak": 0, "Tidak Layak": 1}
	encImmunization = map[string]float64{"Dasar Tidak Lengkap": 0, "Lengkap": 1, "Tidak Lengkap": 2}
	encBreastfeed   = map[string]float64{"Ya": 1, "Tidak": 0}
	encOccupation   = map[string]float64{"Buruh": 0, "Lainnya": 1, "PNS": 2, "Petani": 3, "Wiraswasta": 4}
	encEducation    = map[string]float64{"Diploma": 0, "S1": 1, "SD": 2, "SMA": 3, "SMP": 4}
	encTTD          = map[string]float64{"Baik": 0, "Kurang": 1}
	encAidProgram   = map[string]float64{"BPNT": 0, "PKH": 1, "Tidak Ada": 2}
)

// EncodeFeatures assembles the fixed-order feature vector the classifier
// expects. Column order must match training exactly.
func EncodeFeatures(rec *domain.PredictionRecord) ([]float64, error) {
	sex, err := encode("jenis_kelamin_anak", rec.ChildSex, encChildSex)
	if err != nil {
		return nil, err
	}
	occupation, err := encode("jenis_pekerjaan_orang_tua", rec.ParentOccupation, encOccupation)
	if err != nil {
		return nil, err
	}
	education, err := encode("pendidikan_ibu", rec.MotherEducation, encEducation)
	if err != nil {
		return nil, err
	}
	water, err := encode("akses_air_bersih", rec.CleanWaterAccess, encWaterAccess)
	if err != nil {
		return nil, err
	}
	immunization, err := encode("status_imunisasi_anak", rec.ImmunizationStatus, encImmunization)
	if err != nil {
		return nil, err
	}
	breastfeed, err := encode("asi_eksklusif", rec.ExclusiveBreastfeed, encBreastfeed)
	if err != nil {
		return nil, err
	}
	ttd, err := encode("kepatuhan_ttd", rec.IronTabletAdherence, encTTD)
	if err != nil {
		return nil, err
	}
	aid, err := encode("kepesertaan_program_bantuan", rec.AidProgram, encAidProgram)
	if err != nil {
		return nil, err
	}

	return []float64{
		sex,
		occupation,
		education,
		rec.ChildCount,
		water,
		immunization,
		rec.BirthWeightGrams,
		breastfeed,
		rec.ChildAgeMonths,
		rec.MotherHeightCm,
		rec.MUACPregnancyCm,
		rec.PrePregnancyBMI,
		rec.HemoglobinGdl,
		rec.PregnancyWeightGain,
		rec.MotherAgeAtBirth,
		rec.BirthSpacingMonths,
		rec.ANCVisits,
		ttd,
		aid,
	}, nil
}

func encode(field, value string, table map[string]float64) (float64, error) {
	v, ok := table[value]
	if !ok {
		return 0, &EncodingError{Field: field, Value: value}
	}
	return v, nil
}

// Adapter scores records through a local classifier artifact.
type Adapter struct {
	artifact Artifact
}

// NewAdapter wires an adapter to a loaded artifact.
func NewAdapter(artifact Artifact) *Adapter {
	return &Adapter{artifact: artifact}
}

// Predict validates and encodes the record, then invokes the artifact.
// Encoding failures are reported before the artifact is touched. A feature
// width differing from what the artifact was fit on is a configuration
// error, never silently padded.
func (a *Adapter) Predict(ctx context.Context, rec *domain.PredictionRecord) (*domain.PredictionResult, error) {
	features, err := EncodeFeatures(rec)
	if err != nil {
		return nil, err
	}

	if want := a.artifact.FeatureCount(); want != len(features) {
		return nil, &ArtifactError{
			Message: fmt.Sprintf("feature width mismatch: artifact expects %d columns, assembled %d", want, len(features)),
		}
	}

	proba, class, err := a.artifact.PredictProba(ctx, features)
	if err != nil {
		return nil, &ArtifactError{Message: err.Error()}
	}

	label := "Tidak Stunting"
	if class == 1 {
		label = "Stunting"
	}
	return &domain.PredictionResult{
		Probability: proba,
		Label:       label,
		Source:      "model",
	}, nil
}
