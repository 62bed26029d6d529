package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiolab/heart-xai/internal/config"
	"github.com/cardiolab/heart-xai/internal/types"
)

// writeArtifacts persists a small but fully valid artifact set: a single-tree
// forest splitting on scaled age, the matching scaler and a background sample.
func writeArtifacts(t *testing.T, dir string) {
	t.Helper()

	n := len(types.FeatureSchema)

	importances := make([]float64, n)
	importances[0] = 1.0

	modelArtifact := map[string]interface{}{
		"model_type": "random_forest",
		"n_features": n,
		"trees": []map[string]interface{}{
			{
				"children_left":  []int{1, -1, -1},
				"children_right": []int{2, -1, -1},
				"feature":        []int{0, -2, -2},
				"threshold":      []float64{0.0, 0, 0},
				"value":          [][]float64{{4, 4}, {3, 1}, {1, 3}},
			},
		},
		"feature_importances": importances,
	}
	raw, err := json.Marshal(modelArtifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), raw, 0644))

	mean := make([]float64, n)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1.0
	}
	mean[0] = 50.0
	scale[0] = 10.0

	scalerArtifact := map[string]interface{}{
		"feature_names": types.FeatureSchema,
		"mean":          mean,
		"scale":         scale,
	}
	raw, err = json.Marshal(scalerArtifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scaler.json"), raw, 0644))

	var sb strings.Builder
	sb.WriteString(strings.Join(types.FeatureSchema, ","))
	sb.WriteByte('\n')
	for r := 0; r < 6; r++ {
		cells := make([]string, n)
		for i := range cells {
			cells[i] = fmt.Sprintf("%.2f", float64((r+i)%5)*0.4-1.0)
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "background.csv"), []byte(sb.String()), 0644))
}

func testConfig(dir string) config.Config {
	return config.Config{
		Port:             "0",
		DataDir:          dir,
		ModelPath:        filepath.Join(dir, "model.json"),
		ScalerPath:       filepath.Join(dir, "scaler.json"),
		BackgroundPath:   filepath.Join(dir, "background.csv"),
		BackgroundSample: 100,
		ExplainSeed:      42,
		ExplainTimeout:   10 * time.Second,
		CacheTTL:         time.Minute,
		AllowedOrigins:   []string{"http://localhost:3000"},
		IPLimitPerMin:    0, // no limiter in tests
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writeArtifacts(t, dir)

	app := newApplication(testConfig(dir))
	require.True(t, app.ready())
	return setupRouter(app)
}

func postJSON(r *gin.Engine, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func validPatient() map[string]interface{} {
	return map[string]interface{}{
		"age": 63, "sex": 1, "cp": 3, "trestbps": 145, "chol": 233,
		"fbs": 1, "restecg": 0, "thalach": 150, "exang": 0,
		"oldpeak": 2.3, "slope": 0, "ca": 0, "thal": 1,
	}
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t)

	t.Run("liveness", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("readiness reports loaded artifacts", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/health", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var health types.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, "healthy", health.Status)
		assert.True(t, health.ModelLoaded)
		assert.True(t, health.ScalerLoaded)
		assert.True(t, health.BackgroundLoaded)
	})
}

func TestPredictEndpoint(t *testing.T) {
	r := newTestRouter(t)

	t.Run("positive prediction for high scaled age", func(t *testing.T) {
		w := postJSON(r, "/api/predict", validPatient())
		require.Equal(t, http.StatusOK, w.Code)

		var resp types.PredictionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		// age 63 scales above the tree split, landing in the p1=0.75 leaf
		assert.Equal(t, 1, resp.Prediction)
		assert.InDelta(t, 0.75, resp.Probability, 1e-9)
		assert.Equal(t, "High", resp.RiskLevel)
	})

	t.Run("negative prediction for low scaled age", func(t *testing.T) {
		body := validPatient()
		body["age"] = 30

		w := postJSON(r, "/api/predict", body)
		require.Equal(t, http.StatusOK, w.Code)

		var resp types.PredictionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Prediction)
		assert.InDelta(t, 0.25, resp.Probability, 1e-9)
		assert.Equal(t, "Low", resp.RiskLevel)
	})

	t.Run("missing field rejected", func(t *testing.T) {
		body := validPatient()
		delete(body, "chol")

		w := postJSON(r, "/api/predict", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"category":"validation"`)
	})

	t.Run("zero values are legitimate, not missing", func(t *testing.T) {
		body := validPatient()
		body["exang"] = 0
		body["oldpeak"] = 0

		w := postJSON(r, "/api/predict", body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non-JSON content type rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("age=63"))
		req.Header.Set("Content-Type", "text/plain")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

func TestExplainEndpoint(t *testing.T) {
	r := newTestRouter(t)

	t.Run("full explanation payload", func(t *testing.T) {
		w := postJSON(r, "/api/explain", validPatient())
		require.Equal(t, http.StatusOK, w.Code)

		var resp types.ExplanationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, 1, resp.Prediction)
		assert.InDelta(t, 0.75, resp.Probability, 1e-9)

		// one additive entry per schema feature, in schema order
		require.Len(t, resp.ShapValues, len(types.FeatureSchema))
		for i, name := range types.FeatureSchema {
			assert.Equal(t, name, resp.ShapValues[i].Feature)
		}

		// importance is a sorted permutation of the same features
		require.Len(t, resp.FeatureImportance, len(types.FeatureSchema))
		for i := 1; i < len(resp.FeatureImportance); i++ {
			assert.GreaterOrEqual(t,
				resp.FeatureImportance[i-1].Importance,
				resp.FeatureImportance[i].Importance)
		}

		// the sparse surrogate view is capped at ten features
		assert.LessOrEqual(t, len(resp.LimeExplanation.Features), 10)
		assert.NotEmpty(t, resp.LimeExplanation.Features)
	})

	t.Run("repeat request serves the identical explanation", func(t *testing.T) {
		first := postJSON(r, "/api/explain", validPatient())
		second := postJSON(r, "/api/explain", validPatient())

		require.Equal(t, http.StatusOK, first.Code)
		require.Equal(t, http.StatusOK, second.Code)
		assert.JSONEq(t, first.Body.String(), second.Body.String())
	})

	t.Run("missing field rejected", func(t *testing.T) {
		body := validPatient()
		delete(body, "thal")

		w := postJSON(r, "/api/explain", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestModelImportanceEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/model/importance", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Features    []string  `json:"features"`
		Importances []float64 `json:"importances"`
		Method      string    `json:"method"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.FeatureSchema, resp.Features)
	require.Len(t, resp.Importances, len(types.FeatureSchema))
	assert.Equal(t, 1.0, resp.Importances[0])
	assert.Equal(t, "tree_path", resp.Method)
}

func TestDegradedService(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writeArtifacts(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "model.json")))

	app := newApplication(testConfig(dir))
	require.False(t, app.ready())
	r := setupRouter(app)

	t.Run("readiness reports degraded", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/health", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var health types.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, "degraded", health.Status)
		assert.False(t, health.ModelLoaded)
		assert.True(t, health.ScalerLoaded)
	})

	t.Run("predict reports model unavailable", func(t *testing.T) {
		w := postJSON(r, "/api/predict", validPatient())
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"category":"model"`)
	})

	t.Run("explain reports model unavailable", func(t *testing.T) {
		w := postJSON(r, "/api/explain", validPatient())
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"category":"model"`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	postJSON(r, "/api/predict", validPatient())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "request_count")
}
