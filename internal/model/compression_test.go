package model_test

import (
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"

	"image-compress-go/internal/model"
)

func TestBatchResponseSucceeded(t *testing.T) {
	resp := model.BatchResponse{
		Success: true,
		Results: []model.CompressionResult{
			{OriginalName: "a.png", CompressedSize: 10},
			{OriginalName: "b.txt", Error: "unsupported file type"},
			{OriginalName: "c.jpg", CompressedSize: 20},
		},
	}
	gt.Equal(t, resp.Succeeded(), 2)
	gt.Equal(t, resp.Results[1].Failed(), true)
}

func TestUploadResponseCarriesResultFields(t *testing.T) {
	row := model.CompressionResult{
		OriginalName:       "cat.png",
		CompressedName:     "cat_1a2b3c4d.png",
		OriginalSize:       2048,
		CompressedSize:     1024,
		ReductionPercent:   50,
		OriginalDimensions: "2000x1000",
		NewDimensions:      "1280x640",
		DownloadURL:        "/download/cat_1a2b3c4d.png",
	}
	resp := model.NewUploadResponse(row, "image compressed")
	gt.Equal(t, resp.Success, true)
	gt.Equal(t, resp.Result(), row)

	data, err := json.Marshal(model.UploadResponse{Success: false, Error: "no file part"})
	gt.NoError(t, err)

	var m map[string]any
	gt.NoError(t, json.Unmarshal(data, &m))
	gt.Equal(t, m["success"], any(false))
	gt.Equal(t, m["error"], any("no file part"))
	_, hasURL := m["download_url"]
	gt.Equal(t, hasURL, false)
}

func TestCompressionResultJSON(t *testing.T) {
	resp := model.BatchResponse{
		Success: true,
		Results: []model.CompressionResult{
			{
				OriginalName:       "a.png",
				OriginalSize:       100,
				CompressedSize:     100,
				OriginalDimensions: "1x1",
				NewDimensions:      "1x1",
				DownloadURL:        "/download/a.png",
			},
			{OriginalName: "b.txt", Error: "unsupported file type"},
		},
	}
	data, err := json.Marshal(resp)
	gt.NoError(t, err)

	var decoded struct {
		Results []map[string]any `json:"results"`
	}
	gt.NoError(t, json.Unmarshal(data, &decoded))
	gt.Equal(t, len(decoded.Results), 2)

	ok := decoded.Results[0]
	for _, key := range []string{"original_size", "compressed_size", "reduction_percent", "original_dimensions", "new_dimensions", "download_url"} {
		_, has := ok[key]
		gt.Equal(t, has, true)
	}
	gt.Equal(t, ok["reduction_percent"], any(float64(0)))
	_, hasErr := ok["error"]
	gt.Equal(t, hasErr, false)

	gt.Equal(t, decoded.Results[1], map[string]any{"original_name": "b.txt", "error": "unsupported file type"})

	var back model.BatchResponse
	gt.NoError(t, json.Unmarshal(data, &back))
	gt.Equal(t, back.Results, resp.Results)
}
