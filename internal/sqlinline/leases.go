package sqlinline

const QAcquireLease = `--sql 4baf6da7-40ef-48e9-b94e-2053dfad20c3
insert into run_leases (job_name, holder, acquired_at, expires_at)
values ($1, $2, now(), $3)
on conflict (job_name) do update
set holder = excluded.holder,
    acquired_at = excluded.acquired_at,
    expires_at = excluded.expires_at
where run_leases.expires_at <= now() or run_leases.holder = excluded.holder
returning job_name, holder, acquired_at, expires_at;
`

const QRenewLease = `--sql 4a460e65-a400-40f4-9281-5b490e291c16
update run_leases
set expires_at = $3
where job_name = $1 and holder = $2 and expires_at > now()
returning job_name, holder, acquired_at, expires_at;
`

const QReleaseLease = `--sql ea3429d5-cd8e-4c21-bdf4-387150f90dd0
delete from run_leases
where job_name = $1 and holder = $2;
`
