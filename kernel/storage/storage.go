// Package storage models block devices and their mount table: a fixed set
// of device and mount slots, deterministic UUID assignment, and the policy
// gates that govern mount/format/fsck requests.
package storage

import "strings"

const (
	maxDevices = 8
	maxMounts  = 8
)

// Status is the outcome of a storage operation.
type Status int

const (
	Ok Status = iota
	ErrNotFound
	ErrInvalid
	ErrAlreadyMounted
	ErrNotMounted
	ErrBusy
	ErrPolicy
	ErrConfirmationRequired
	ErrNoFilesystem
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case ErrNotFound:
		return "not-found"
	case ErrInvalid:
		return "invalid-args"
	case ErrAlreadyMounted:
		return "already-mounted"
	case ErrNotMounted:
		return "not-mounted"
	case ErrBusy:
		return "busy"
	case ErrPolicy:
		return "policy-denied"
	case ErrConfirmationRequired:
		return "confirmation-required"
	case ErrNoFilesystem:
		return "no-filesystem"
	default:
		return "unknown"
	}
}

type device struct {
	inUse      bool
	name       string
	path       string
	sizeBytes  uint64
	removable  bool
	readOnly   bool
	formatted  bool
	fstype     string
	label      string
	uuid       [36]byte
	mountSlot  int
}

type mount struct {
	inUse      bool
	deviceSlot int
	target     string
	readWrite  bool
	trusted    bool
}

var (
	devices        [maxDevices]device
	mounts         [maxMounts]mount
	uuidGeneration uint32 = 1
)

// DeviceInfo is the read-only view returned to callers.
type DeviceInfo struct {
	Name           string
	Path           string
	SizeBytes      uint64
	Removable      bool
	ReadOnly       bool
	Formatted      bool
	FSType         string
	Label          string
	UUID           string
	Mountpoint     string
	MountReadWrite bool
}

func isAbsolutePath(path string) bool {
	return len(path) > 0 && path[0] == '/'
}

func isValidDevicePath(path string) bool {
	return strings.HasPrefix(path, "/dev/") && len(path) > len("/dev/")
}

func isSupportedFSType(fstype string) bool {
	switch fstype {
	case "ext4", "vfat", "xfs":
		return true
	default:
		return false
	}
}

const hexDigits = "0123456789abcdef"

func writeHex(dst []byte, value uint32, digits int) {
	for i := 0; i < digits; i++ {
		shift := uint((digits - 1 - i) * 4)
		dst[i] = hexDigits[(value>>shift)&0xF]
	}
}

// makeUUID derives a deterministic RFC-4122-shaped identifier from the
// device slot and the monotonic generation counter, mirroring the scheme
// every device on this machine type uses so UUIDs stay stable across a
// fresh boot with the same device topology. The result is a fixed-size
// value, not a heap-allocated string: no make/append is involved in
// building it.
func makeUUID(devSlot uint32) [36]byte {
	a := 0xA11C0000 | ((uuidGeneration + devSlot) & 0xFFFF)
	b := 0xBEEF + uuidGeneration + devSlot
	c := 0x1000 | ((uuidGeneration + devSlot) & 0x0FFF)
	d := 0x8000 | ((devSlot + 1) & 0x0FFF)
	eHi := uint32(0xC0DE)
	eLo := uuidGeneration*37 + devSlot

	var buf [36]byte
	writeHex(buf[0:8], a, 8)
	buf[8] = '-'
	writeHex(buf[9:13], b, 4)
	buf[13] = '-'
	writeHex(buf[14:18], c, 4)
	buf[18] = '-'
	writeHex(buf[19:23], d, 4)
	buf[23] = '-'
	writeHex(buf[24:28], eHi, 4)
	writeHex(buf[28:36], eLo, 8)
	return buf
}

func findDeviceSlot(path string) int {
	for i := range devices {
		if devices[i].inUse && devices[i].path == path {
			return i
		}
	}
	return -1
}

func findMountSlotByTarget(target string) int {
	for i := range mounts {
		if mounts[i].inUse && mounts[i].target == target {
			return i
		}
	}
	return -1
}

func findFreeMountSlot() int {
	for i := range mounts {
		if !mounts[i].inUse {
			return i
		}
	}
	return -1
}

func addDevice(name, path string, sizeBytes uint64, removable, readOnly, formatted bool, fstype, label string) int {
	for i := range devices {
		if devices[i].inUse {
			continue
		}
		devices[i] = device{
			inUse:     true,
			name:      name,
			path:      path,
			sizeBytes: sizeBytes,
			removable: removable,
			readOnly:  readOnly,
			formatted: formatted,
			mountSlot: -1,
		}
		if formatted {
			devices[i].fstype = fstype
			devices[i].label = label
		}
		devices[i].uuid = makeUUID(uint32(i))
		uuidGeneration++
		return i
	}
	return -1
}

func fillDeviceInfo(index int) DeviceInfo {
	d := &devices[index]
	info := DeviceInfo{
		Name:      d.name,
		Path:      d.path,
		SizeBytes: d.sizeBytes,
		Removable: d.removable,
		ReadOnly:  d.readOnly,
		Formatted: d.formatted,
	}
	if d.formatted {
		info.FSType = d.fstype
		info.Label = d.label
		info.UUID = string(d.uuid[:])
	}
	if d.mountSlot >= 0 && d.mountSlot < maxMounts && mounts[d.mountSlot].inUse {
		info.Mountpoint = mounts[d.mountSlot].target
		info.MountReadWrite = mounts[d.mountSlot].readWrite
	}
	return info
}

// Init resets the device and mount tables and seeds the standard topology:
// a formatted, mounted ram0 root device and an unformatted removable usb0.
func Init() {
	devices = [maxDevices]device{}
	mounts = [maxMounts]mount{}
	uuidGeneration = 1

	addDevice("ram0", "/dev/ram0", 64*1024*1024, false, false, true, "ext4", "rootfs")
	addDevice("usb0", "/dev/usb0", 32*1024*1024, true, false, false, "", "")

	if devices[0].inUse {
		mounts[0] = mount{inUse: true, deviceSlot: 0, target: "/", readWrite: true, trusted: true}
		devices[0].mountSlot = 0
	}
}

// DeviceCount returns the number of devices currently registered.
func DeviceCount() int {
	count := 0
	for i := range devices {
		if devices[i].inUse {
			count++
		}
	}
	return count
}

// DeviceInfoAt returns the index'th in-use device, in registration order.
func DeviceInfoAt(index int) (DeviceInfo, bool) {
	seen := 0
	for i := range devices {
		if !devices[i].inUse {
			continue
		}
		if seen == index {
			return fillDeviceInfo(i), true
		}
		seen++
	}
	return DeviceInfo{}, false
}

// FindDevice looks up a device by its /dev path.
func FindDevice(path string) (DeviceInfo, bool) {
	slot := findDeviceSlot(path)
	if slot < 0 {
		return DeviceInfo{}, false
	}
	return fillDeviceInfo(slot), true
}

// Mount attaches device at target. force overrides the removable+untrusted
// write-protection policy; dryRun validates without mutating state.
func Mount(device_, target string, readWrite, trusted, force, dryRun bool) Status {
	if !isValidDevicePath(device_) || !isAbsolutePath(target) {
		return ErrInvalid
	}

	slot := findDeviceSlot(device_)
	if slot < 0 {
		return ErrNotFound
	}
	d := &devices[slot]

	if !d.formatted {
		return ErrNoFilesystem
	}
	if d.mountSlot >= 0 {
		return ErrAlreadyMounted
	}
	if findMountSlotByTarget(target) >= 0 {
		return ErrBusy
	}
	if d.readOnly && readWrite {
		return ErrPolicy
	}
	if d.removable && !trusted && readWrite && !force {
		return ErrPolicy
	}

	mountSlot := findFreeMountSlot()
	if mountSlot < 0 {
		return ErrBusy
	}
	if dryRun {
		return Ok
	}

	mounts[mountSlot] = mount{
		inUse:      true,
		deviceSlot: slot,
		target:     target,
		readWrite:  readWrite && (!d.removable || trusted || force),
		trusted:    trusted,
	}
	d.mountSlot = mountSlot
	return Ok
}

// UmountTarget detaches whatever is mounted at target, which may name
// either a mountpoint or the underlying device path.
func UmountTarget(target string, dryRun bool) Status {
	if target == "" {
		return ErrInvalid
	}

	slot := findMountSlotByTarget(target)
	if slot < 0 && isValidDevicePath(target) {
		if devSlot := findDeviceSlot(target); devSlot >= 0 {
			slot = devices[devSlot].mountSlot
		}
	}
	if slot < 0 || slot >= maxMounts || !mounts[slot].inUse {
		return ErrNotMounted
	}
	if dryRun {
		return Ok
	}

	if ds := mounts[slot].deviceSlot; ds >= 0 && ds < maxDevices {
		devices[ds].mountSlot = -1
	}
	mounts[slot] = mount{}
	return Ok
}

// Fsck validates that device is formatted and currently unmounted. force
// without confirmed is rejected, matching the destructive-action guard used
// throughout this package.
func Fsck(device_ string, force, dryRun, confirmed bool) Status {
	if !isValidDevicePath(device_) {
		return ErrInvalid
	}
	slot := findDeviceSlot(device_)
	if slot < 0 {
		return ErrNotFound
	}
	d := &devices[slot]
	if !d.formatted {
		return ErrNoFilesystem
	}
	if d.mountSlot >= 0 {
		return ErrBusy
	}
	if force && !confirmed {
		return ErrConfirmationRequired
	}
	return Ok
}

// Format reinitializes device with fstype (defaulting to ext4) and label.
// It always requires both force and confirmed, since it destroys data.
func Format(device_, fstype, label string, force, dryRun, confirmed bool) Status {
	useFSType := fstype
	if useFSType == "" {
		useFSType = "ext4"
	}

	if !isValidDevicePath(device_) || !isSupportedFSType(useFSType) {
		return ErrInvalid
	}
	slot := findDeviceSlot(device_)
	if slot < 0 {
		return ErrNotFound
	}
	d := &devices[slot]
	if d.mountSlot >= 0 {
		return ErrBusy
	}
	if !force || !confirmed {
		return ErrConfirmationRequired
	}
	if dryRun {
		return Ok
	}

	d.formatted = true
	d.fstype = useFSType
	d.label = label
	d.uuid = makeUUID(uint32(slot))
	uuidGeneration++
	return Ok
}
