package types

// FeatureSchema is the canonical feature order the classifier was trained on.
// The scaler artifact carries the authoritative copy; this list documents the
// expected clinical fields and is used to validate the loaded artifacts.
var FeatureSchema = []string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal",
}

// PatientRecord is the request body for both prediction and explanation.
// Fields are pointers so that an absent field is distinguishable from a
// legitimate zero (sex=0, exang=0, ...); gin's `required` binding rejects
// only nil pointers, not zero values.
type PatientRecord struct {
	Age      *float64 `json:"age" binding:"required"`      // Age in years
	Sex      *float64 `json:"sex" binding:"required"`      // 1 = male, 0 = female
	CP       *float64 `json:"cp" binding:"required"`       // Chest pain type (0-3)
	Trestbps *float64 `json:"trestbps" binding:"required"` // Resting blood pressure (mm Hg)
	Chol     *float64 `json:"chol" binding:"required"`     // Serum cholesterol (mg/dl)
	FBS      *float64 `json:"fbs" binding:"required"`      // Fasting blood sugar > 120 mg/dl
	Restecg  *float64 `json:"restecg" binding:"required"`  // Resting ECG results (0-2)
	Thalach  *float64 `json:"thalach" binding:"required"`  // Maximum heart rate achieved
	Exang    *float64 `json:"exang" binding:"required"`    // Exercise induced angina
	Oldpeak  *float64 `json:"oldpeak" binding:"required"`  // ST depression induced by exercise
	Slope    *float64 `json:"slope" binding:"required"`    // Slope of peak exercise ST segment (0-2)
	CA       *float64 `json:"ca" binding:"required"`       // Major vessels colored by fluoroscopy (0-3)
	Thal     *float64 `json:"thal" binding:"required"`     // Thalassemia (0-2)
}

// Fields returns the record as a name->value mapping keyed by schema names.
// A nil entry means the field was absent from the request.
func (p *PatientRecord) Fields() map[string]*float64 {
	return map[string]*float64{
		"age":      p.Age,
		"sex":      p.Sex,
		"cp":       p.CP,
		"trestbps": p.Trestbps,
		"chol":     p.Chol,
		"fbs":      p.FBS,
		"restecg":  p.Restecg,
		"thalach":  p.Thalach,
		"exang":    p.Exang,
		"oldpeak":  p.Oldpeak,
		"slope":    p.Slope,
		"ca":       p.CA,
		"thal":     p.Thal,
	}
}

// PredictionResponse is the output of the prediction endpoint.
type PredictionResponse struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
	RiskLevel   string  `json:"risk_level"`
}

// ShapValue is one signed additive attribution entry, in schema order.
type ShapValue struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// FeatureImportance is one magnitude/direction entry of the importance view.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Direction  string  `json:"direction"` // "positive" or "negative"
}

// LimeFeature is one sparse surrogate-model weight.
type LimeFeature struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// LimeExplanation is the sparse local surrogate view.
type LimeExplanation struct {
	Intercept float64       `json:"intercept"`
	Features  []LimeFeature `json:"features"`
}

// ExplanationResponse is the output of the explanation endpoint.
type ExplanationResponse struct {
	Prediction        int                 `json:"prediction"`
	Probability       float64             `json:"probability"`
	ShapValues        []ShapValue         `json:"shap_values"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
	LimeExplanation   LimeExplanation     `json:"lime_explanation"`
}

// HealthResponse reports process and artifact readiness.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	ModelLoaded      bool   `json:"model_loaded"`
	ScalerLoaded     bool   `json:"scaler_loaded"`
	BackgroundLoaded bool   `json:"background_loaded"`
}
