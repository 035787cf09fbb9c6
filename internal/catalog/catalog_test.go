// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"drive-blocks/pkg/geo"
)

// DFW 机场周边的测试目录
func testCatalog() *Catalog {
	c := New(0)
	c.Load([]Venue{
		{Name: "DFW Terminal C", Coords: geo.Point{Lat: 32.897480, Lng: -97.040443}, Category: "airport", Reliability: 0.92},
		{Name: "Grapevine Main St", Coords: geo.Point{Lat: 32.934300, Lng: -97.078100}, Category: "entertainment", Reliability: 0.71},
		{Name: "Downtown Dallas", Coords: geo.Point{Lat: 32.779200, Lng: -96.808900}, Category: "nightlife", Reliability: 0.85},
	})
	return c
}

func TestShortlistSortedByDistance(t *testing.T) {
	c := testCatalog()
	origin := geo.Point{Lat: 32.896800, Lng: -97.038000}

	got := c.Shortlist(origin, 0)
	if len(got) != 3 {
		t.Fatalf("短名单长度 = %d", len(got))
	}
	if got[0].Name != "DFW Terminal C" {
		t.Errorf("最近的应是 DFW Terminal C，得到 %s", got[0].Name)
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceKm < got[i-1].DistanceKm {
			t.Errorf("距离未升序: %f < %f", got[i].DistanceKm, got[i-1].DistanceKm)
		}
	}
}

func TestShortlistCrossContinentalEmpty(t *testing.T) {
	c := testCatalog()
	// 巴黎地区：距离目录场地 > 1000 km，过滤返回空而不是报错
	origin := geo.Point{Lat: 49.009700, Lng: 2.547900}
	if got := c.Shortlist(origin, 0); len(got) != 0 {
		t.Errorf("跨洲坐标应返回空短名单，得到 %d 条", len(got))
	}
}

func TestShortlistLimit(t *testing.T) {
	c := testCatalog()
	origin := geo.Point{Lat: 32.896800, Lng: -97.038000}
	if got := c.Shortlist(origin, 2); len(got) != 2 {
		t.Errorf("limit=2 得到 %d 条", len(got))
	}
}

func TestEmptyCatalogIsValid(t *testing.T) {
	c := New(0)
	if got := c.Shortlist(geo.Point{Lat: 32.9, Lng: -97.0}, 0); len(got) != 0 {
		t.Errorf("空目录应返回空短名单")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d", c.Size())
	}
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "venues.yaml")
	seed := `venues:
  - name: "DFW Terminal C staging"
    coords: {lat: 32.897480, lng: -97.040443}
    staging: {lat: 32.898010, lng: -97.041200}
    category: airport
    reliability: 0.92
    district: dfw-airport
  - name: "Legacy West"
    coords: {lat: 33.079000, lng: -96.825800}
    category: dining
    reliability: 0.66
`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(0)
	if err := LoadSeed(c, path); err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d", c.Size())
	}

	got := c.Shortlist(geo.Point{Lat: 32.896800, Lng: -97.038000}, 1)
	if len(got) != 1 || got[0].District != "dfw-airport" {
		t.Errorf("种子字段未解析: %+v", got)
	}
}

func TestLoadSeedRejectsBadCoords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "venues.yaml")
	seed := `venues:
  - name: "nowhere"
    coords: {lat: 123.0, lng: 0.0}
`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadSeed(New(0), path); err == nil {
		t.Error("越界坐标应报错")
	}
}

func TestLoadSeedEmptyPath(t *testing.T) {
	c := New(0)
	if err := LoadSeed(c, ""); err != nil {
		t.Errorf("空路径应为合法空目录: %v", err)
	}
}
