package adv

import "fmt"

// MaxLen is the legacy advertising payload limit.
const MaxLen = 31

// Type is a Bluetooth SIG AD type tag.
// https://bitbucket.org/bluetooth-SIG/public/src/main/assigned_numbers/core/ad_types.yaml
type Type uint8

const (
	TypeInvalid                               Type = 0x00
	TypeFlags                                 Type = 0x01
	TypeService16Incomplete                   Type = 0x02
	TypeService16                             Type = 0x03
	TypeService32Incomplete                   Type = 0x04
	TypeService32                             Type = 0x05
	TypeService128Incomplete                  Type = 0x06
	TypeService128                            Type = 0x07
	TypeShortName                             Type = 0x08
	TypeFullName                              Type = 0x09
	TypePowerLevel                            Type = 0x0a
	TypeClassOfDevice                         Type = 0x0d
	TypeSimplePairingHashC192                 Type = 0x0e
	TypeSimplePairingRandomizerR192           Type = 0x0f
	TypeDeviceID                              Type = 0x10
	TypeSecurityManagerOOBFlags               Type = 0x11
	TypePeripheralConnectionIntervalRange     Type = 0x12
	TypeServiceSolicitation16                 Type = 0x14
	TypeServiceSolicitation128                Type = 0x15
	TypeServiceData16                         Type = 0x16
	TypePublicTargetAddress                   Type = 0x17
	TypeRandomTargetAddress                   Type = 0x18
	TypeAppearance                            Type = 0x19
	TypeAdvInterval                           Type = 0x1a
	TypeLEDeviceAddress                       Type = 0x1b
	TypeLERole                                Type = 0x1c
	TypeSimplePairingHashC256                 Type = 0x1d
	TypeSimplePairingRandomizerR256           Type = 0x1e
	TypeServiceSolicitation32                 Type = 0x1f
	TypeServiceData32                         Type = 0x20
	TypeServiceData128                        Type = 0x21
	TypeLESecureConnectionsConfirmationValue  Type = 0x22
	TypeLESecureConnectionsRandomValue        Type = 0x23
	TypeURI                                   Type = 0x24
	TypeIndoorPositioning                     Type = 0x25
	TypeTransportDiscoveryData                Type = 0x26
	TypeLESupportedFeatures                   Type = 0x27
	TypeChannelMapUpdateIndication            Type = 0x28
	TypePBADV                                 Type = 0x29
	TypeMeshMessage                           Type = 0x2a
	TypeMeshBeacon                            Type = 0x2b
	TypeBIGInfo                               Type = 0x2c
	TypeBroadcastCode                         Type = 0x2d
	TypeResolvableSetIdentifier               Type = 0x2e
	TypeLongAdvertisingInterval               Type = 0x2f
	TypeBroadcastName                         Type = 0x30
	TypeEncryptedAdvertisingData              Type = 0x31
	TypePeriodicAdvertisingResponseTimingInfo Type = 0x32
	TypeElectronicShelfLabel                  Type = 0x34
	Type3DInformationData                     Type = 0x3d
	TypeVendorSpecific                        Type = 0xff
)

// Flag bits carried by a TypeFlags element.
const (
	FlagDiscoveryLimited  uint8 = 0x01
	FlagDiscoveryGeneral  uint8 = 0x02
	FlagBREDRNotSupported uint8 = 0x04
	FlagBREDRController   uint8 = 0x08
	FlagBREDRHost         uint8 = 0x10
)

var typeNames = map[Type]string{
	TypeInvalid:                               "invalid",
	TypeFlags:                                 "flags",
	TypeService16Incomplete:                   "service16_incomplete",
	TypeService16:                             "service16",
	TypeService32Incomplete:                   "service32_incomplete",
	TypeService32:                             "service32",
	TypeService128Incomplete:                  "service128_incomplete",
	TypeService128:                            "service128",
	TypeShortName:                             "short_name",
	TypeFullName:                              "full_name",
	TypePowerLevel:                            "power_level",
	TypeClassOfDevice:                         "class_of_device",
	TypeSimplePairingHashC192:                 "simple_pairing_hash_c192",
	TypeSimplePairingRandomizerR192:           "simple_pairing_randomizer_r192",
	TypeDeviceID:                              "device_id",
	TypeSecurityManagerOOBFlags:               "security_manager_oob_flags",
	TypePeripheralConnectionIntervalRange:     "peripheral_connection_interval_range",
	TypeServiceSolicitation16:                 "service_solicitation16",
	TypeServiceSolicitation128:                "service_solicitation128",
	TypeServiceData16:                         "service_data16",
	TypePublicTargetAddress:                   "public_target_address",
	TypeRandomTargetAddress:                   "random_target_address",
	TypeAppearance:                            "appearance",
	TypeAdvInterval:                           "adv_interval",
	TypeLEDeviceAddress:                       "le_device_address",
	TypeLERole:                                "le_role",
	TypeSimplePairingHashC256:                 "simple_pairing_hash_c256",
	TypeSimplePairingRandomizerR256:           "simple_pairing_randomizer_r256",
	TypeServiceSolicitation32:                 "service_solicitation32",
	TypeServiceData32:                         "service_data32",
	TypeServiceData128:                        "service_data128",
	TypeLESecureConnectionsConfirmationValue:  "le_secure_connections_confirmation_value",
	TypeLESecureConnectionsRandomValue:        "le_secure_connections_random_value",
	TypeURI:                                   "uri",
	TypeIndoorPositioning:                     "indoor_positioning",
	TypeTransportDiscoveryData:                "transport_discovery_data",
	TypeLESupportedFeatures:                   "le_supported_features",
	TypeChannelMapUpdateIndication:            "channel_map_update_indication",
	TypePBADV:                                 "pb_adv",
	TypeMeshMessage:                           "mesh_message",
	TypeMeshBeacon:                            "mesh_beacon",
	TypeBIGInfo:                               "big_info",
	TypeBroadcastCode:                         "broadcast_code",
	TypeResolvableSetIdentifier:               "resolvable_set_identifier",
	TypeLongAdvertisingInterval:               "long_advertising_interval",
	TypeBroadcastName:                         "broadcast_name",
	TypeEncryptedAdvertisingData:              "encrypted_advertising_data",
	TypePeriodicAdvertisingResponseTimingInfo: "periodic_advertising_response_timing_info",
	TypeElectronicShelfLabel:                  "electronic_shelf_label",
	Type3DInformationData:                     "3d_information_data",
	TypeVendorSpecific:                        "vendor_specific",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(t))
}

// serviceDataType maps a UUID byte width to its service data AD type.
func serviceDataType(width int) (Type, bool) {
	switch width {
	case 2:
		return TypeServiceData16, true
	case 4:
		return TypeServiceData32, true
	case 16:
		return TypeServiceData128, true
	}
	return TypeInvalid, false
}

// serviceListWidth returns the UUID width packed into a service list element.
func serviceListWidth(t Type) int {
	switch t {
	case TypeService16, TypeService16Incomplete:
		return 2
	case TypeService32, TypeService32Incomplete:
		return 4
	case TypeService128, TypeService128Incomplete:
		return 16
	}
	return 0
}
