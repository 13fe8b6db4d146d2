package domain

// PredictionRecord is a raw user-submitted family record. Categorical values
// arrive as the labels shown on the form; numeric values as numbers. The
// prediction adapter owns the re-encoding into model features.
type PredictionRecord struct {
	ChildSex            string  `json:"jenis_kelamin_anak"`
	ParentOccupation    string  `json:"jenis_pekerjaan_orang_tua"`
	MotherEducation     string  `json:"pendidikan_ibu"`
	ChildCount          float64 `json:"jumlah_anak"`
	CleanWaterAccess    string  `json:"akses_air_bersih"`
	ImmunizationStatus  string  `json:"status_imunisasi_anak"`
	BirthWeightGrams    float64 `json:"berat_lahir_gram"`
	ExclusiveBreastfeed string  `json:"asi_eksklusif"`
	ChildAgeMonths      float64 `json:"usia_anak_bulan"`
	MotherHeightCm      float64 `json:"tinggi_badan_ibu_cm"`
	MUACPregnancyCm     float64 `json:"lila_saat_hamil_cm"`
	PrePregnancyBMI     float64 `json:"bmi_pra_hamil"`
	HemoglobinGdl       float64 `json:"hb_g_dl"`
	PregnancyWeightGain float64 `json:"kenaikan_bb_hamil_kg"`
	MotherAgeAtBirth    float64 `json:"usia_ibu_saat_hamil_tahun"`
	BirthSpacingMonths  float64 `json:"jarak_kehamilan_sebelumnya_bulan"`
	ANCVisits           float64 `json:"kunjungan_anc_x"`
	IronTabletAdherence string  `json:"kepatuhan_ttd"`
	AidProgram          string  `json:"kepesertaan_program_bantuan"`
}

// PredictionResult is the adapter output shown to the user.
type PredictionResult struct {
	Probability     float64  `json:"risk_score"`
	Label           string   `json:"risk_label"`
	Recommendations []string `json:"recommendations,omitempty"`
	// Source records which path produced the score: "model", "remote"
	// or "heuristic".
	Source string `json:"source"`
}
