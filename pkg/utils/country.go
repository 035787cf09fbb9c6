package utils

import "strings"

// countryAliases 地理编码 provider 返回的常见国家写法 → ISO 3166-1 alpha-2。
// 存储层只落两位码，展示名在读取时派生。
var countryAliases = map[string]string{
	"usa":            "US",
	"united states":  "US",
	"united states of america": "US",
	"america":        "US",
	"united kingdom": "GB",
	"great britain":  "GB",
	"england":        "GB",
	"france":         "FR",
	"germany":        "DE",
	"deutschland":    "DE",
	"canada":         "CA",
	"mexico":         "MX",
	"spain":          "ES",
	"españa":         "ES",
	"italy":          "IT",
	"italia":         "IT",
	"japan":          "JP",
	"china":          "CN",
	"india":          "IN",
	"brazil":         "BR",
	"brasil":         "BR",
	"australia":      "AU",
	"netherlands":    "NL",
	"belgium":        "BE",
	"portugal":       "PT",
	"ireland":        "IE",
	"switzerland":    "CH",
	"austria":        "AT",
	"poland":         "PL",
	"sweden":         "SE",
	"norway":         "NO",
	"denmark":        "DK",
	"finland":        "FI",
	"south korea":    "KR",
	"korea":          "KR",
	"singapore":      "SG",
	"new zealand":    "NZ",
	"south africa":   "ZA",
	"argentina":      "AR",
	"chile":          "CL",
	"colombia":       "CO",
	"turkey":         "TR",
	"türkiye":        "TR",
	"greece":         "GR",
	"czech republic": "CZ",
	"czechia":        "CZ",
	"hungary":        "HU",
	"romania":        "RO",
	"israel":         "IL",
	"egypt":          "EG",
	"nigeria":        "NG",
	"kenya":          "KE",
	"thailand":       "TH",
	"vietnam":        "VN",
	"indonesia":      "ID",
	"malaysia":       "MY",
	"philippines":    "PH",
	"taiwan":         "TW",
	"hong kong":      "HK",
	"uae":            "AE",
	"united arab emirates": "AE",
	"saudi arabia":   "SA",
}

// countryNames alpha-2 → 展示名
var countryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"FR": "France",
	"DE": "Germany",
	"CA": "Canada",
	"MX": "Mexico",
	"ES": "Spain",
	"IT": "Italy",
	"JP": "Japan",
	"CN": "China",
	"IN": "India",
	"BR": "Brazil",
	"AU": "Australia",
	"NL": "Netherlands",
	"BE": "Belgium",
	"PT": "Portugal",
	"IE": "Ireland",
	"CH": "Switzerland",
	"AT": "Austria",
	"PL": "Poland",
	"SE": "Sweden",
	"NO": "Norway",
	"DK": "Denmark",
	"FI": "Finland",
	"KR": "South Korea",
	"SG": "Singapore",
	"NZ": "New Zealand",
	"ZA": "South Africa",
	"AR": "Argentina",
	"CL": "Chile",
	"CO": "Colombia",
	"TR": "Türkiye",
	"GR": "Greece",
	"CZ": "Czechia",
	"HU": "Hungary",
	"RO": "Romania",
	"IL": "Israel",
	"EG": "Egypt",
	"NG": "Nigeria",
	"KE": "Kenya",
	"TH": "Thailand",
	"VN": "Vietnam",
	"ID": "Indonesia",
	"MY": "Malaysia",
	"PH": "Philippines",
	"TW": "Taiwan",
	"HK": "Hong Kong",
	"AE": "United Arab Emirates",
	"SA": "Saudi Arabia",
}

// NormalizeCountry 把 provider 返回的国家写法归一为 ISO 3166-1 alpha-2。
// 已是两位码则大写返回；未知写法原样返回（不猜）。
func NormalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	if code, ok := countryAliases[strings.ToLower(s)]; ok {
		return code
	}
	return s
}

// CountryDisplayName alpha-2 → 展示名；未收录的码原样返回
func CountryDisplayName(code string) string {
	if name, ok := countryNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}
