package common_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/geoharvest/geoharvest/common"
)

func TestInfoSentinel1(t *testing.T) {
	info, err := common.Info("S1B_IW_GRDH_1SDV_20211126T171914_20211126T171939_029775_038DC2_+10D")
	if err != nil {
		t.Fatal(err)
	}
	for k, expected := range map[string]string{
		"MISSION_ID":       "S1B",
		"MODE":             "IW",
		"PRODUCT_TYPE":     "GRD",
		"PROCESSING_LEVEL": "1",
		"POLARISATION":     "DV",
		"DATE":             "20211126",
		"TIME":             "171914",
		"ORBIT":            "029775",
	} {
		if info[k] != expected {
			t.Errorf("%s: expected %s, got %s", k, expected, info[k])
		}
	}
}

func TestInfoSentinel2(t *testing.T) {
	info, err := common.Info("S2B_MSIL1C_20211127T103309_N0301_R108_T32TLR_20211127T123342")
	if err != nil {
		t.Fatal(err)
	}
	for k, expected := range map[string]string{
		"MISSION_ID":    "S2B",
		"PRODUCT_LEVEL": "L1C",
		"DATE":          "20211127",
		"TIME":          "103309",
		"ORBIT":         "108",
		"TILE":          "T32TLR",
	} {
		if info[k] != expected {
			t.Errorf("%s: expected %s, got %s", k, expected, info[k])
		}
	}
}

func TestInfoSentinel3(t *testing.T) {
	info, err := common.Info("S3A_OL_1_EFR____20181107T095926_20181107T100226_20181108T152631_0179_038_022_2160_LN1_O_NT_002")
	if err != nil {
		t.Fatal(err)
	}
	for k, expected := range map[string]string{
		"MISSION_ID":       "S3A",
		"INSTRUMENT":       "OL",
		"PROCESSING_LEVEL": "1",
		"PRODUCT_TYPE":     "EFR",
		"DATE":             "20181107",
		"TIME":             "095926",
	} {
		if info[k] != expected {
			t.Errorf("%s: expected %s, got %s", k, expected, info[k])
		}
	}
}

func TestInfoInvalid(t *testing.T) {
	for _, sceneName := range []string{"", "S1B_IW", "S2B_MSI", "S3A_OL", "LC09_L1GT_166003"} {
		if _, err := common.Info(sceneName); err == nil {
			t.Errorf("expected error for %q", sceneName)
		}
	}
}

func TestGetDateFromProductId(t *testing.T) {
	date, err := common.GetDateFromProductId("S2B_MSIL1C_20211127T103309_N0301_R108_T32TLR_20211127T123342")
	if err != nil {
		t.Fatal(err)
	}
	if !date.Equal(time.Date(2021, 11, 27, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date: %v", date)
	}
}

func TestGetConstellationFromString(t *testing.T) {
	for input, expected := range map[string]common.Constellation{
		"sentinel1":  common.Sentinel1,
		"Sentinel-2": common.Sentinel2,
		"SENTINEL3":  common.Sentinel3,
		"S1A_IW_GRD": common.Sentinel1,
		"landsat":    common.Unknown,
	} {
		if c := common.GetConstellationFromString(input); c != expected {
			t.Errorf("%s: expected %v, got %v", input, expected, c)
		}
	}
}

func TestFormatBrackets(t *testing.T) {
	info, err := common.Info("S2B_MSIL1C_20211127T103309_N0301_R108_T32TLR_20211127T123342")
	if err != nil {
		t.Fatal(err)
	}
	got := common.FormatBrackets("{MISSION_ID}/{TILE}/{YEAR}/{MONTH}/{SCENE}.zip", info)
	expected := "S2B/T32TLR/2021/11/S2B_MSIL1C_20211127T103309_N0301_R108_T32TLR_20211127T123342.zip"
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(common.StatusSKIPPED)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"SKIPPED"` {
		t.Errorf("unexpected marshal: %s", b)
	}
	var s common.Status
	if err := json.Unmarshal([]byte(`"FAILED"`), &s); err != nil {
		t.Fatal(err)
	}
	if s != common.StatusFAILED {
		t.Errorf("unexpected unmarshal: %v", s)
	}
	if err := json.Unmarshal([]byte(`"NOPE"`), &s); err == nil {
		t.Errorf("expected error")
	}
}

func TestStatusTerminal(t *testing.T) {
	if common.StatusPENDING.Terminal() || common.StatusINFLIGHT.Terminal() {
		t.Errorf("pending/inflight must not be terminal")
	}
	for _, s := range []common.Status{common.StatusDONE, common.StatusFAILED, common.StatusSKIPPED, common.StatusCANCELLED} {
		if !s.Terminal() {
			t.Errorf("%v must be terminal", s)
		}
	}
}
