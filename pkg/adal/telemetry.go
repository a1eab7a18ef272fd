// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import "runtime"

// Identifying headers sent with every service request. They only feed service
// side statistics and diagnostics; protocol correctness never depends on them.
const (
	headerProduct     = "x-client-SKU"
	headerVersion     = "x-client-Ver"
	headerCPUPlatform = "x-client-CPU"
	headerOS          = "x-client-OS"
	headerDeviceModel = "x-client-DM"
)

const clientVersion = "1.0.0"

// PlatformInformation supplies the product and platform strings used for
// outbound telemetry headers.
type PlatformInformation interface {
	ProductName() string
	OperatingSystem() string
	ProcessorArchitecture() string
	DeviceModel() string
}

type runtimePlatform struct{}

func (runtimePlatform) ProductName() string           { return "adtoken-go" }
func (runtimePlatform) OperatingSystem() string       { return runtime.GOOS }
func (runtimePlatform) ProcessorArchitecture() string { return runtime.GOARCH }
func (runtimePlatform) DeviceModel() string           { return "" }

var platformInfo PlatformInformation = runtimePlatform{}

// SetPlatformInformation replaces the platform metadata provider used for
// telemetry headers. Pass nil to restore the runtime-derived default.
func SetPlatformInformation(info PlatformInformation) {
	if info == nil {
		info = runtimePlatform{}
	}

	platformInfo = info
}

// clientIdentityHeaders returns the identifying headers for one request.
func clientIdentityHeaders() map[string]string {
	headers := map[string]string{
		headerProduct: platformInfo.ProductName(),
		headerVersion: clientVersion,
	}

	if cpu := platformInfo.ProcessorArchitecture(); cpu != "" {
		headers[headerCPUPlatform] = cpu
	}

	if os := platformInfo.OperatingSystem(); os != "" {
		headers[headerOS] = os
	}

	if model := platformInfo.DeviceModel(); model != "" {
		headers[headerDeviceModel] = model
	}

	return headers
}
