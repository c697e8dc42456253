package common

import (
	"fmt"
	"strings"
	"time"
)

// Constellation defines the kind of satellites
type Constellation int

const (
	Unknown   Constellation = iota
	Sentinel1               // MMM_BB_TTTR_LFPP_YYYYMMDDTHHMMSS_YYYYMMDDTHHMMSS_OOOOOO_DDDDDD_CCCC.SAFE
	Sentinel2               // MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>.SAFE
	Sentinel3               // MMM_SS_L_TTTTTT_YYYYMMDDTHHMMSS_YYYYMMDDTHHMMSS_..._PPP.SEN3
)

func (c Constellation) String() string {
	switch c {
	case Sentinel1:
		return "SENTINEL1"
	case Sentinel2:
		return "SENTINEL2"
	case Sentinel3:
		return "SENTINEL3"
	}
	return "UNKNOWN"
}

func (c Constellation) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

func (c *Constellation) UnmarshalJSON(data []byte) error {
	*c = GetConstellationFromString(strings.Trim(string(data), `"`))
	if *c == Unknown {
		return fmt.Errorf("unknown constellation: %s", data)
	}
	return nil
}

// GetConstellationFromString returns the constellation from the user input
func GetConstellationFromString(input string) Constellation {
	switch strings.ToLower(input) {
	case "sentinel1", "sentinel-1":
		return Sentinel1
	case "sentinel2", "sentinel-2":
		return Sentinel2
	case "sentinel3", "sentinel-3":
		return Sentinel3
	}
	return GetConstellationFromProductId(input)
}

func GetConstellationFromProductId(sceneName string) Constellation {
	if strings.HasPrefix(sceneName, "S1") {
		return Sentinel1
	}
	if strings.HasPrefix(sceneName, "S2") {
		return Sentinel2
	}
	if strings.HasPrefix(sceneName, "S3") {
		return Sentinel3
	}
	return Unknown
}

func GetDateFromProductId(sceneName string) (time.Time, error) {
	format, err := Info(sceneName)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102", fmt.Sprintf("%s%s%s", format["YEAR"], format["MONTH"], format["DAY"]))
}

func Info(sceneName string) (map[string]string, error) {
	switch GetConstellationFromProductId(sceneName) {
	case Sentinel1:
		if len(sceneName) < len("MMM_BB_TTTR_LFPP_YYYYMMDDTHHMMSS_YYYYMMDDTHHMMSS_OOOOOO_DDDDDD_CCCC") {
			return nil, fmt.Errorf("invalid Sentinel1 file name: " + sceneName)
		}
		return map[string]string{
			"SCENE":            sceneName,
			"MISSION_ID":       sceneName[0:3],
			"MISSION_VERSION":  sceneName[2:3],
			"MODE":             sceneName[4:6],
			"PRODUCT_TYPE":     sceneName[7:10],
			"RESOLUTION":       sceneName[10:11],
			"PROCESSING_LEVEL": sceneName[12:13],
			"PRODUCT_CLASS":    sceneName[13:14],
			"POLARISATION":     sceneName[14:16],
			"DATE":             sceneName[17:25],
			"YEAR":             sceneName[17:21],
			"MONTH":            sceneName[21:23],
			"DAY":              sceneName[23:25],
			"TIME":             sceneName[26:32],
			"HOUR":             sceneName[26:28],
			"MINUTE":           sceneName[28:30],
			"SECOND":           sceneName[30:32],
			"ORBIT":            sceneName[49:55],
			"MISSION":          sceneName[56:62],
			"UNIQUE_ID":        sceneName[63:67],
		}, nil
	case Sentinel2:
		if len(sceneName) < len("MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Disc.>") {
			return nil, fmt.Errorf("invalid Sentinel2 file name: " + sceneName)
		}
		return map[string]string{
			"SCENE":           sceneName,
			"MISSION_ID":      sceneName[0:3],
			"MISSION_VERSION": sceneName[2:3],
			"PRODUCT_LEVEL":   sceneName[7:10],
			"DATE":            sceneName[11:19],
			"YEAR":            sceneName[11:15],
			"MONTH":           sceneName[15:17],
			"DAY":             sceneName[17:19],
			"TIME":            sceneName[20:26],
			"HOUR":            sceneName[20:22],
			"MINUTE":          sceneName[22:24],
			"SECOND":          sceneName[24:26],
			"PDGS":            sceneName[28:32],
			"ORBIT":           sceneName[34:37],
			"TILE":            sceneName[38:44],
			"LATITUDE_BAND":   sceneName[39:41],
			"GRID_SQUARE":     sceneName[41:42],
			"GRANULE_ID":      sceneName[42:44],
			"PRODUCT_DISC":    sceneName[45:60],
		}, nil
	case Sentinel3:
		// S3A_OL_1_EFR____20181107T095926_20181107T100226_20181108T152631_0179_038_022_2160_LN1_O_NT_002
		if len(sceneName) < len("MMM_SS_L_TTTTTT_YYYYMMDDTHHMMSS_YYYYMMDDTHHMMSS") {
			return nil, fmt.Errorf("invalid Sentinel3 file name: " + sceneName)
		}
		return map[string]string{
			"SCENE":            sceneName,
			"MISSION_ID":       sceneName[0:3],
			"MISSION_VERSION":  sceneName[2:3],
			"INSTRUMENT":       sceneName[4:6],
			"PROCESSING_LEVEL": sceneName[7:8],
			"PRODUCT_TYPE":     strings.TrimRight(sceneName[9:15], "_"),
			"DATE":             sceneName[16:24],
			"YEAR":             sceneName[16:20],
			"MONTH":            sceneName[20:22],
			"DAY":              sceneName[22:24],
			"TIME":             sceneName[25:31],
			"HOUR":             sceneName[25:27],
			"MINUTE":           sceneName[27:29],
			"SECOND":           sceneName[29:31],
		}, nil
	}
	return nil, fmt.Errorf("Info: constellation not supported")
}

/**
 * FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
 * keys must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), ORBIT, TILE, ...
 */
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
