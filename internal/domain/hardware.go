package domain

import "strings"

// HardwareInfo describes the machine being monitored. Fields a source cannot
// determine are left empty.
type HardwareInfo struct {
	CPUModel    string `json:"cpu_model"`
	CPUBrand    string `json:"cpu_brand"`
	CPUSeries   string `json:"cpu_series"`
	CPUCores    int    `json:"cpu_cores"`
	LogicalCPUs int    `json:"logical_cpus"`
	DiskModel   string `json:"disk_model"`
	DiskBrand   string `json:"disk_brand"`
	Motherboard string `json:"motherboard"`
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	Arch        string `json:"arch"`
}

// CPUBrand names the vendor found in a CPU model string: Intel, AMD, Apple
// or Unknown. An empty model yields "".
func CPUBrand(model string) string {
	if model == "" {
		return ""
	}
	s := strings.ToLower(model)
	switch {
	case strings.Contains(s, "intel"):
		return "Intel"
	case strings.Contains(s, "amd"):
		return "AMD"
	case strings.Contains(s, "apple"):
		return "Apple"
	}
	return "Unknown"
}

// CPUSeries extracts the product line (i7, i5, i3, Ryzen) or Unknown.
func CPUSeries(model string) string {
	if model == "" {
		return ""
	}
	for _, series := range []string{"i7", "i5", "i3", "Ryzen"} {
		if strings.Contains(model, series) {
			return series
		}
	}
	return "Unknown"
}

// EstimateCoreCount guesses a core count from the model name. It is only
// used when the platform does not report one.
func EstimateCoreCount(model string) int {
	if model == "" {
		return 0
	}
	switch {
	case strings.Contains(model, "i7"):
		return 8
	case strings.Contains(model, "i5"):
		return 6
	case strings.Contains(model, "i3"):
		return 4
	case strings.Contains(model, "Ryzen 9"):
		return 12
	case strings.Contains(model, "Ryzen 7"):
		return 8
	case strings.Contains(model, "Ryzen 5"):
		return 6
	}
	return 4
}

var vendorKeys = []struct{ match, key string }{
	{"intel", "intel"},
	{"amd", "amd"},
	{"samsung", "samsung"},
	{"western digital", "wd"},
	{"seagate", "seagate"},
	{"kingston", "kingston"},
}

// VendorKey maps a CPU or disk model to a short vendor key used for logos,
// or "default" when none matches.
func VendorKey(model string) string {
	s := strings.ToLower(model)
	for _, v := range vendorKeys {
		if strings.Contains(s, v.match) {
			return v.key
		}
	}
	return "default"
}

// Complete fills the derived CPU fields from CPUModel.
func (h HardwareInfo) Complete() HardwareInfo {
	h.CPUBrand = CPUBrand(h.CPUModel)
	h.CPUSeries = CPUSeries(h.CPUModel)
	if h.CPUCores <= 0 {
		h.CPUCores = EstimateCoreCount(h.CPUModel)
	}
	if h.DiskModel != "" {
		h.DiskBrand = VendorKey(h.DiskModel)
	}
	return h
}
