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
	"fmt"

	"github.com/spf13/viper"
)

// LoadSeed 从 YAML 种子文件加载目录。path 为空时返回空目录（合法状态）。
// 种子格式:
//
//	venues:
//	  - name: "DFW Terminal C staging"
//	    coords: {lat: 32.897480, lng: -97.040443}
//	    staging: {lat: 32.898010, lng: -97.041200}
//	    category: airport
//	    reliability: 0.92
//	    district: dfw-airport
func LoadSeed(c *Catalog, path string) error {
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取场地种子失败: %w", err)
	}
	var seed struct {
		Venues []Venue `mapstructure:"venues"`
	}
	if err := v.Unmarshal(&seed); err != nil {
		return fmt.Errorf("解析场地种子失败: %w", err)
	}
	for i, venue := range seed.Venues {
		if venue.Name == "" {
			return fmt.Errorf("场地种子第 %d 条缺少 name", i+1)
		}
		if !venue.Coords.Valid() {
			return fmt.Errorf("场地种子 %q 坐标越界", venue.Name)
		}
	}
	c.Load(seed.Venues)
	return nil
}
