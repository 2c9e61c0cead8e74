package wire

import "fmt"

// IoctlBase is the ioctl type character of every core command.
const IoctlBase = 'd'

// Driver-private command numbers occupy [CommandBase, CommandEnd).
const (
	CommandBase = 0x40
	CommandEnd  = 0xa0
)

func iowr(nr uint8, size int) uint32 {
	return NewCode(DirRead|DirWrite, uint16(size), IoctlBase, nr)
}

func iow(nr uint8, size int) uint32 {
	return NewCode(DirWrite, uint16(size), IoctlBase, nr)
}

func io(nr uint8) uint32 {
	return NewCode(DirNone, 0, IoctlBase, nr)
}

var (
	// DRM_IOWR(0x00, struct drm_version)
	CmdVersion = iowr(0x00, SizeVersion)

	// DRM_IOWR(0x0c, struct drm_get_cap)
	CmdGetCap = iowr(0x0c, SizeGetCap)

	// DRM_IOW(0x0d, struct drm_set_client_cap)
	CmdSetClientCap = iow(0x0d, SizeSetClientCap)

	// DRM_IO(0x1e)
	CmdSetMaster = io(0x1e)

	// DRM_IO(0x1f)
	CmdDropMaster = io(0x1f)

	// DRM_IOWR(0xA0, struct drm_mode_card_res)
	CmdModeGetResources = iowr(0xa0, SizeCardRes)

	// DRM_IOWR(0xA1, struct drm_mode_crtc)
	CmdModeGetCrtc = iowr(0xa1, SizeCrtc)

	// DRM_IOWR(0xA2, struct drm_mode_crtc)
	CmdModeSetCrtc = iowr(0xa2, SizeCrtc)

	// DRM_IOWR(0xA3, struct drm_mode_cursor)
	CmdModeCursor = iowr(0xa3, SizeCursor)

	// DRM_IOWR(0xA5, struct drm_mode_crtc_lut)
	CmdModeSetGamma = iowr(0xa5, SizeCrtcLut)

	// DRM_IOWR(0xA6, struct drm_mode_get_encoder)
	CmdModeGetEncoder = iowr(0xa6, SizeGetEncoder)

	// DRM_IOWR(0xA7, struct drm_mode_get_connector)
	CmdModeGetConnector = iowr(0xa7, SizeGetConnector)

	// DRM_IOWR(0xAA, struct drm_mode_get_property)
	CmdModeGetProperty = iowr(0xaa, SizeGetProperty)

	// DRM_IOWR(0xAB, struct drm_mode_connector_set_property)
	CmdModeSetProperty = iowr(0xab, SizeConnectorSetProp)

	// DRM_IOWR(0xAC, struct drm_mode_get_blob)
	CmdModeGetPropBlob = iowr(0xac, SizeGetBlob)

	// DRM_IOWR(0xAE, struct drm_mode_fb_cmd)
	CmdModeAddFB = iowr(0xae, SizeFBCmd)

	// DRM_IOWR(0xAF, unsigned int)
	CmdModeRmFB = iowr(0xaf, 4)

	// DRM_IOWR(0xB1, struct drm_mode_fb_dirty_cmd)
	CmdModeDirtyFB = iowr(0xb1, SizeFBDirtyCmd)

	// DRM_IOWR(0xB2, struct drm_mode_create_dumb)
	CmdModeCreateDumb = iowr(0xb2, SizeCreateDumb)

	// DRM_IOWR(0xB3, struct drm_mode_map_dumb)
	CmdModeMapDumb = iowr(0xb3, SizeMapDumb)

	// DRM_IOWR(0xB4, struct drm_mode_destroy_dumb)
	CmdModeDestroyDumb = iowr(0xb4, SizeDestroyDumb)

	// DRM_IOWR(0xB5, struct drm_mode_get_plane_res)
	CmdModeGetPlaneResources = iowr(0xb5, SizeGetPlaneRes)

	// DRM_IOWR(0xB6, struct drm_mode_get_plane)
	CmdModeGetPlane = iowr(0xb6, SizeGetPlane)

	// DRM_IOWR(0xB9, struct drm_mode_obj_get_properties)
	CmdModeObjGetProperties = iowr(0xb9, SizeObjGetProperties)

	// DRM_IOWR(0xBB, struct drm_mode_cursor2)
	CmdModeCursor2 = iowr(0xbb, SizeCursor2)
)

var commandNames = map[uint32]string{
	CmdVersion:               "VERSION",
	CmdGetCap:                "GET_CAP",
	CmdSetClientCap:          "SET_CLIENT_CAP",
	CmdSetMaster:             "SET_MASTER",
	CmdDropMaster:            "DROP_MASTER",
	CmdModeGetResources:      "MODE_GETRESOURCES",
	CmdModeGetCrtc:           "MODE_GETCRTC",
	CmdModeSetCrtc:           "MODE_SETCRTC",
	CmdModeCursor:            "MODE_CURSOR",
	CmdModeSetGamma:          "MODE_SETGAMMA",
	CmdModeGetEncoder:        "MODE_GETENCODER",
	CmdModeGetConnector:      "MODE_GETCONNECTOR",
	CmdModeGetProperty:       "MODE_GETPROPERTY",
	CmdModeSetProperty:       "MODE_SETPROPERTY",
	CmdModeGetPropBlob:       "MODE_GETPROPBLOB",
	CmdModeAddFB:             "MODE_ADDFB",
	CmdModeRmFB:              "MODE_RMFB",
	CmdModeDirtyFB:           "MODE_DIRTYFB",
	CmdModeCreateDumb:        "MODE_CREATE_DUMB",
	CmdModeMapDumb:           "MODE_MAP_DUMB",
	CmdModeDestroyDumb:       "MODE_DESTROY_DUMB",
	CmdModeGetPlaneResources: "MODE_GETPLANERESOURCES",
	CmdModeGetPlane:          "MODE_GETPLANE",
	CmdModeObjGetProperties:  "MODE_OBJ_GETPROPERTIES",
	CmdModeCursor2:           "MODE_CURSOR2",
}

// CommandName returns the symbolic name of a core command code.
// Driver-private commands are named DRIVER_0xNN; anything else is UNKNOWN.
func CommandName(code uint32) string {
	if name, ok := commandNames[code]; ok {
		return name
	}
	if IsDriverCommand(code) {
		return fmt.Sprintf("DRIVER_0x%02x", CodeNr(code))
	}
	return "UNKNOWN"
}

// IsDriverCommand reports whether code addresses the driver-private range.
func IsDriverCommand(code uint32) bool {
	nr := CodeNr(code)
	return CodeType(code) == IoctlBase && nr >= CommandBase && nr < CommandEnd
}
