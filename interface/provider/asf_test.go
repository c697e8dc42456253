package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/geoharvest/geoharvest/common"
)

func TestASFImageProviderLooksUpUnknownProductType(t *testing.T) {
	// RAW is not served by the datapool layout: the scene must be looked up
	const scene = "S1A_IW_RAW__0SDV_20211126T171914_20211126T171939_029775_038DC2_F279"
	lookups := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/search/param":
			lookups++
			if r.URL.Query().Get("granule_list") != scene {
				http.Error(w, "unexpected granule_list", 400)
				return
			}
			fmt.Fprintf(w, `{"features":[{"properties":{
				"sceneName": %q,
				"fileName": "%s.zip",
				"url": "%s/data/%s.zip",
				"bytes": 9,
				"startTime": "2021-11-26T17:19:14.000000"}}]}`, scene, scene, server.URL, scene)
		case "/data/" + scene + ".zip":
			if r.Header.Get("Authorization") != "Bearer edl-token" {
				http.Error(w, "unauthorized", 401)
				return
			}
			w.Write([]byte("asf-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ip := NewASFImageProvider("edl-token")
	ip.finder.URL = server.URL + "/services/search/param?"

	localPath := filepath.Join(t.TempDir(), scene+".zip")
	if err := ip.Download(context.Background(), common.Product{ID: scene, Provider: common.ProviderCMR}, localPath); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if lookups != 1 {
		t.Errorf("expected 1 catalogue lookup, got %d", lookups)
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "asf-bytes" {
		t.Errorf("unexpected content: %q", content)
	}
}
