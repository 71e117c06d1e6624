package smtc

import "fmt"

// prelude loads the WinRT projection and resolves the current session into $session.
// Scripts print "nosession" and exit when there is none.
const prelude = `
$ErrorActionPreference = 'Stop'
Add-Type -AssemblyName System.Runtime.WindowsRuntime
$asTaskGeneric = ([System.WindowsRuntimeSystemExtensions].GetMethods() | Where-Object {
    $_.Name -eq 'AsTask' -and $_.GetParameters().Count -eq 1 -and
    $_.GetParameters()[0].ParameterType.Name -eq 'IAsyncOperation` + "`" + `1'
})[0]
Function Await($op, $type) {
    $task = $asTaskGeneric.MakeGenericMethod($type).Invoke($null, @($op))
    $task.Wait(-1) | Out-Null
    $task.Result
}
[Windows.Media.Control.GlobalSystemMediaTransportControlsSessionManager,Windows.Media.Control,ContentType=WindowsRuntime] | Out-Null
$manager = Await ([Windows.Media.Control.GlobalSystemMediaTransportControlsSessionManager]::RequestAsync()) ([Windows.Media.Control.GlobalSystemMediaTransportControlsSessionManager])
$session = $manager.GetCurrentSession()
if ($null -eq $session) { 'nosession'; exit 0 }
`

const snapshotScript = prelude + `
$props = Await ($session.TryGetMediaPropertiesAsync()) ([Windows.Media.Control.GlobalSystemMediaTransportControlsSessionMediaProperties])
$info = $session.GetPlaybackInfo()
$timeline = $session.GetTimelineProperties()
[pscustomobject]@{
    app           = $session.SourceAppUserModelId
    title         = $props.Title
    artist        = $props.Artist
    album         = $props.AlbumTitle
    trackNumber   = $props.TrackNumber
    genres        = @($props.Genres)
    status        = [int]$info.PlaybackStatus
    repeat        = $(if ($null -ne $info.AutoRepeatMode) { [int]$info.AutoRepeatMode } else { $null })
    shuffle       = $info.IsShuffleActive
    positionTicks = $timeline.Position.Ticks
    endTicks      = $timeline.EndTime.Ticks
} | ConvertTo-Json -Compress
`

const artworkScript = prelude + `
$props = Await ($session.TryGetMediaPropertiesAsync()) ([Windows.Media.Control.GlobalSystemMediaTransportControlsSessionMediaProperties])
if ($null -eq $props.Thumbnail) { ''; exit 0 }
$stream = Await ($props.Thumbnail.OpenReadAsync()) ([Windows.Storage.Streams.IRandomAccessStreamWithContentType])
$size = [uint32]$stream.Size
$reader = New-Object Windows.Storage.Streams.DataReader($stream.GetInputStreamAt(0))
Await ($reader.LoadAsync($size)) ([uint32]) | Out-Null
$bytes = New-Object byte[] $size
$reader.ReadBytes($bytes)
[Convert]::ToBase64String($bytes)
`

// commandScript runs a Try*Async call on the session and prints ok or rejected
func commandScript(call string) string {
	return prelude + fmt.Sprintf(`
$accepted = Await ($session.%s) ([bool])
if ($accepted) { 'ok' } else { 'rejected' }
`, call)
}
